package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pelicandev/pelican/internal/config"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and workspace",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	cfgPath := config.DefaultPath()

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(cfgPath)
		if loadErr != nil {
			existing = config.DefaultConfig()
		}
		if err := config.Save(existing, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", cfgPath)
	} else {
		cfg := config.DefaultConfig()
		if err := config.Save(cfg, cfgPath); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}
	fmt.Printf("✓ Workspace at %s\n", workspace)

	createWorkspaceTemplates(workspace)

	fmt.Printf("\n%s pelican is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add your API key to %s\n", cfgPath)
	fmt.Printf("  2. Chat: pelican agent -m \"Hello!\"\n")
	return nil
}

func createWorkspaceTemplates(workspace string) {
	templates := map[string]string{
		"IDENTITY.md": `# Identity

You are pelican, a personal assistant. Be concise, accurate, and friendly.

## Guidelines

- Use the save_memory tool to record durable facts about the user
- Use the schedule tool for reminders and recurring tasks
- Ask for clarification when a request is ambiguous
`,
		"HEARTBEAT.md": `# Heartbeat tasks

Unchecked items below are picked up on the periodic heartbeat check.
Check items off (or delete them) when they are done.

<!-- - [ ] example: check the news each morning -->
`,
		"MEMORY.md": `# Memory

Durable facts about the user, kept short. The save_memory tool rewrites
this file.
`,
	}

	for filename, content := range templates {
		p := filepath.Join(workspace, filename)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			_ = os.WriteFile(p, []byte(content), 0o644)
			fmt.Printf("  Created %s\n", filename)
		}
	}
}
