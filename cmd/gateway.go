package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/channels"
	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/cron"
	"github.com/pelicandev/pelican/internal/dependency"
	"github.com/pelicandev/pelican/internal/heartbeat"
)

var gatewayVerbose bool

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the pelican gateway",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().BoolVarP(&gatewayVerbose, "verbose", "v", false, "Verbose logging")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("%s Starting pelican gateway...\n", logo)

	b := container.MessageBus()
	loop := container.AgentLoop()
	cronSvc := container.CronService()

	// Cron jobs run an agent turn; responses are delivered back to the
	// originating channel when the job asks for it.
	cronSvc.SetOnJob(func(ctx context.Context, job cron.Job) (string, error) {
		ch := bus.ChannelCLI
		chatID := "direct"
		if job.Payload.Channel != nil {
			ch = *job.Payload.Channel
		}
		if job.Payload.To != nil {
			chatID = *job.Payload.To
		}
		resp, err := loop.ProcessDirect(ctx, job.Payload.Message, ch, chatID)
		if err != nil {
			return "", err
		}
		if job.Payload.Deliver && job.Payload.To != nil && resp != "" {
			b.PublishOutbound(ctx, bus.OutboundMessage{
				Channel: ch,
				ChatID:  chatID,
				Content: resp,
			})
		}
		return resp, nil
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	channelMgr := channels.NewManager(cfg, b, false)
	if enabled := channelMgr.EnabledChannels(); len(enabled) > 0 {
		var sb string
		for i, n := range enabled {
			if i > 0 {
				sb += ", "
			}
			sb += n
		}
		fmt.Printf("✓ Channels enabled: %s\n", sb)
	} else {
		fmt.Println("Warning: no channels enabled")
	}

	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return cronSvc.Start(gctx) })
	g.Go(func() error { return channelMgr.StartAll(gctx) })

	if cfg.Heartbeat.Enabled {
		hb := heartbeat.NewService(cfg.WorkspacePath(), func(hctx context.Context, prompt string) (string, error) {
			return loop.ProcessDirect(hctx, prompt, "heartbeat", "direct")
		}, time.Duration(cfg.Heartbeat.IntervalMinutes)*time.Minute)
		g.Go(func() error { return hb.Start(gctx) })
	}

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", logo)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
