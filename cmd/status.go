package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/shared/budget"
	"github.com/pelicandev/pelican/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pelican status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.DefaultPath()

	fmt.Printf("%s pelican Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	wsMark := "✗"
	if wsErr == nil {
		wsMark = "✓"
	}
	fmt.Printf("Workspace: %s %s\n", ws, wsMark)
	fmt.Printf("Model:     %s\n", cfg.LLM.Model)
	keyMark := "(not set)"
	if cfg.LLM.APIKey != "" {
		keyMark = "✓"
	}
	fmt.Printf("API key:   %s\n\n", keyMark)

	st, err := store.New(ws)
	if err != nil {
		fmt.Printf("  (could not open store: %v)\n", err)
		return nil
	}

	history, _ := st.LoadHistory(0)
	fmt.Println("Memory:")
	fmt.Printf("  Messages logged:     %d\n", len(history))
	fmt.Printf("  Consolidation cursor: %d\n", st.Cursor())
	fmt.Printf("  Curated memory:      %d words\n", budget.WordCount(st.CuratedMemory()))
	fmt.Printf("  Auto summary:        %d words\n", budget.WordCount(st.AutoSummary()))
	return nil
}
