package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pelicandev/pelican/internal/config"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Show chat channel status",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.DefaultPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		type row struct{ name, enabled, detail string }
		rows := []row{
			{
				"Telegram",
				yesNo(cfg.Channels.Telegram.Enabled),
				tokenHint(cfg.Channels.Telegram.Token),
			},
			{
				"Slack",
				yesNo(cfg.Channels.Slack.Enabled),
				func() string {
					if cfg.Channels.Slack.AppToken != "" && cfg.Channels.Slack.BotToken != "" {
						return "socket"
					}
					return "(not configured)"
				}(),
			},
			{
				"WhatsApp",
				yesNo(cfg.Channels.WhatsApp.Enabled),
				func() string {
					if cfg.Channels.WhatsApp.BridgeURL != "" {
						return cfg.Channels.WhatsApp.BridgeURL
					}
					return "(default bridge)"
				}(),
			},
		}

		fmt.Printf("%-12s %-8s %s\n", "Channel", "Enabled", "Configuration")
		fmt.Println(strings.Repeat("-", 60))
		for _, r := range rows {
			fmt.Printf("%-12s %-8s %s\n", r.name, r.enabled, r.detail)
		}
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func tokenHint(s string) string {
	if s == "" {
		return "(not configured)"
	}
	if len(s) > 10 {
		return s[:10] + "..."
	}
	return s
}
