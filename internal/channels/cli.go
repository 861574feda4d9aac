package channels

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pelicandev/pelican/internal/bus"
)

var cliExitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

// CLIChannel wires the terminal (stdin/stdout) into the channel manager so
// that interactive console input reaches the agent and replies print back.
type CLIChannel struct {
	Base
	replies chan reply
}

type reply struct {
	content  string
	progress bool
}

// NewCLIChannel creates a CLIChannel.
func NewCLIChannel(b *bus.MessageBus) *CLIChannel {
	return &CLIChannel{
		Base:    NewBase(bus.ChannelCLI, b, nil),
		replies: make(chan reply, 16),
	}
}

func (c *CLIChannel) Name() string { return bus.ChannelCLI }

// Start runs the stdin REPL: reads lines, dispatches them to the agent, and
// prints each reply. Blocks until ctx is cancelled or stdin is closed.
func (c *CLIChannel) Start(ctx context.Context) error {
	fmt.Printf("CLI channel ready. Type 'exit' or press Ctrl+C to quit.\n\n")

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("You: ")

		scanDone := make(chan bool, 1)
		go func() {
			scanDone <- scanner.Scan()
		}()

		select {
		case ok := <-scanDone:
			if !ok {
				fmt.Println("\nGoodbye!")
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if cliExitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		c.HandleMessage(ctx, "cli", "", "direct", line, nil)
		c.waitForReply(ctx)
	}
}

// waitForReply blocks until the agent delivers a non-progress reply, printing
// progress hints along the way.
func (c *CLIChannel) waitForReply(ctx context.Context) {
	for {
		select {
		case r := <-c.replies:
			if r.progress {
				fmt.Printf("  > %s\n", r.content)
				continue
			}
			fmt.Printf("\npelican: %s\n\n", r.content)
			return
		case <-ctx.Done():
			return
		}
	}
}

// Send delivers an outbound agent reply to the terminal. The Start loop
// drains the queue and prints to stdout.
func (c *CLIChannel) Send(ctx context.Context, _, text string, metadata map[string]string) error {
	select {
	case c.replies <- reply{content: text, progress: metadata["_progress"] != ""}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
