package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/channels"
	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/dependency"
)

var agentMessage string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Chat with the agent from the terminal",
	RunE:  runAgent,
}

func init() {
	agentCmd.Flags().StringVarP(&agentMessage, "message", "m", "", "Send a single message and exit")
}

func runAgent(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	if agentMessage != "" {
		return runSingleMessage(container)
	}
	return runInteractive(container)
}

// runSingleMessage sends one message to the agent and prints the response.
func runSingleMessage(container *dependency.Container) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Fprintf(os.Stderr, "  > thinking...\n")
	resp, err := container.AgentLoop().ProcessDirect(ctx, agentMessage, bus.ChannelCLI, "direct")
	if err != nil {
		return err
	}
	fmt.Printf("\n%s pelican\n%s\n\n", logo, resp)
	return nil
}

// runInteractive runs the stdin REPL through the CLI channel, pumping the
// outbound queue back to it so replies and progress hints print inline.
func runInteractive(container *dependency.Container) error {
	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n\n", logo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := container.MessageBus()
	cli := channels.NewCLIChannel(b)

	go func() { _ = container.AgentLoop().Run(ctx) }()
	go func() {
		for {
			select {
			case msg := <-b.Outbound:
				_ = cli.Send(ctx, msg.ChatID, msg.Content, msg.Metadata)
			case <-ctx.Done():
				return
			}
		}
	}()

	return cli.Start(ctx)
}
