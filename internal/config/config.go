// Package config defines pelican's YAML configuration, defaults, and startup
// validation. Validation happens once at load time; operational code may
// assume a validated Config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config is the root configuration document (~/.pelican/config.yaml).
type Config struct {
	Workspace string         `yaml:"workspace,omitempty"`
	LLM       LLMConfig      `yaml:"llm"`
	Context   ContextConfig  `yaml:"context"`
	Owners    []OwnerAlias   `yaml:"owners,omitempty"`
	Channels  ChannelsConfig `yaml:"channels"`
	Tools     ToolsConfig    `yaml:"tools"`
	Heartbeat HeartbeatConfig `yaml:"heartbeat"`
}

// LLMConfig configures the chat-completion backend.
type LLMConfig struct {
	APIKey            string  `yaml:"apiKey"`
	APIBase           string  `yaml:"apiBase,omitempty"`
	Model             string  `yaml:"model"`
	MaxTokens         int     `yaml:"maxTokens"`
	Temperature       float32 `yaml:"temperature"`
	MaxToolIterations int     `yaml:"maxToolIterations"`
}

// ContextConfig tunes context assembly and memory consolidation.
type ContextConfig struct {
	// ConsolidationThreshold is the conversational-message count at which
	// consolidation triggers. Must be >= 4 so that the pre-consolidation
	// notice (threshold-2) stays positive.
	ConsolidationThreshold int `yaml:"consolidationThreshold"`
	// KeepRecentRatio is the fraction of the threshold kept verbatim after
	// consolidation, in (0, 1).
	KeepRecentRatio float64 `yaml:"keepRecentRatio"`

	// Word budgets. TotalMaxWords of zero disables the cross-section cap;
	// when set it must be at least HistoryMaxWords.
	MemoryMaxWords  int `yaml:"memoryMaxWords"`
	SummaryMaxWords int `yaml:"summaryMaxWords"`
	HistoryMaxWords int `yaml:"historyMaxWords"`
	TotalMaxWords   int `yaml:"totalMaxWords"`

	// HistoryMinRecent is the number of most recent messages always kept in
	// the window regardless of word budgets.
	HistoryMinRecent int `yaml:"historyMinRecent"`

	// DedupeSummary drops summary lines already present in curated memory.
	DedupeSummary bool `yaml:"dedupeSummary"`

	// MetaWordLimit caps the accumulated summary; above it the summary is
	// re-compressed to about MetaTargetSentences sentences.
	MetaWordLimit       int `yaml:"metaWordLimit"`
	MetaTargetSentences int `yaml:"metaTargetSentences"`
}

// OwnerAlias maps a known sender to a display label. An alias with a Channel
// applies only to that channel and wins over channel-less aliases.
type OwnerAlias struct {
	Name    string `yaml:"name"`
	Label   string `yaml:"label,omitempty"`
	Channel string `yaml:"channel,omitempty"`
}

// ChannelsConfig enables and configures messaging surfaces.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Slack    SlackConfig    `yaml:"slack"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
}

// TelegramConfig configures the Telegram long-polling channel.
type TelegramConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Token     string   `yaml:"token,omitempty"`
	AllowFrom []string `yaml:"allowFrom,omitempty"`
}

// SlackConfig configures the Slack Socket Mode channel.
type SlackConfig struct {
	Enabled   bool     `yaml:"enabled"`
	BotToken  string   `yaml:"botToken,omitempty"`
	AppToken  string   `yaml:"appToken,omitempty"`
	AllowFrom []string `yaml:"allowFrom,omitempty"`
}

// WhatsAppConfig configures the WhatsApp websocket bridge channel.
type WhatsAppConfig struct {
	Enabled     bool     `yaml:"enabled"`
	BridgeURL   string   `yaml:"bridgeUrl,omitempty"`
	BridgeToken string   `yaml:"bridgeToken,omitempty"`
	AllowFrom   []string `yaml:"allowFrom,omitempty"`
}

// ToolsConfig configures built-in tools.
type ToolsConfig struct {
	WebFetchMaxChars int `yaml:"webFetchMaxChars"`
}

// HeartbeatConfig configures the periodic HEARTBEAT.md check.
type HeartbeatConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"intervalMinutes"`
}

// DefaultConfig returns a fully populated configuration with sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Workspace: defaultWorkspace(),
		LLM: LLMConfig{
			Model:             "gpt-4o",
			MaxTokens:         8192,
			Temperature:       0.7,
			MaxToolIterations: 20,
		},
		Context: ContextConfig{
			ConsolidationThreshold: 24,
			KeepRecentRatio:        0.25,
			MemoryMaxWords:         400,
			SummaryMaxWords:        600,
			HistoryMaxWords:        2000,
			TotalMaxWords:          0,
			HistoryMinRecent:       1,
			DedupeSummary:          true,
			MetaWordLimit:          600,
			MetaTargetSentences:    8,
		},
		Tools: ToolsConfig{
			WebFetchMaxChars: 20000,
		},
		Heartbeat: HeartbeatConfig{
			Enabled:         true,
			IntervalMinutes: 30,
		},
	}
}

// Validate checks the configuration once at startup. It returns the first
// violation found.
func (c *Config) Validate() error {
	ctx := c.Context
	if ctx.ConsolidationThreshold < 4 {
		return fmt.Errorf("context.consolidationThreshold must be >= 4, got %d", ctx.ConsolidationThreshold)
	}
	if ctx.KeepRecentRatio <= 0 || ctx.KeepRecentRatio >= 1 {
		return fmt.Errorf("context.keepRecentRatio must be in (0, 1), got %g", ctx.KeepRecentRatio)
	}
	for _, v := range []struct {
		name string
		val  int
	}{
		{"context.memoryMaxWords", ctx.MemoryMaxWords},
		{"context.summaryMaxWords", ctx.SummaryMaxWords},
		{"context.historyMaxWords", ctx.HistoryMaxWords},
	} {
		if v.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", v.name, v.val)
		}
	}
	if ctx.TotalMaxWords != 0 && ctx.TotalMaxWords < ctx.HistoryMaxWords {
		return fmt.Errorf("context.totalMaxWords must be 0 (disabled) or >= historyMaxWords, got %d", ctx.TotalMaxWords)
	}
	if ctx.MetaWordLimit < 0 {
		return fmt.Errorf("context.metaWordLimit must not be negative, got %d", ctx.MetaWordLimit)
	}
	if ctx.HistoryMinRecent < 1 {
		return fmt.Errorf("context.historyMinRecent must be >= 1, got %d", ctx.HistoryMinRecent)
	}
	if ctx.MetaTargetSentences < 1 {
		return fmt.Errorf("context.metaTargetSentences must be >= 1, got %d", ctx.MetaTargetSentences)
	}
	if c.LLM.MaxToolIterations < 1 {
		return fmt.Errorf("llm.maxToolIterations must be >= 1, got %d", c.LLM.MaxToolIterations)
	}
	for i, o := range c.Owners {
		if o.Name == "" {
			return fmt.Errorf("owners[%d].name must not be empty", i)
		}
	}
	return nil
}

// WorkspacePath returns the configured workspace directory, expanded.
func (c *Config) WorkspacePath() string {
	if c.Workspace != "" {
		return expandHome(c.Workspace)
	}
	return defaultWorkspace()
}

func defaultWorkspace() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pelican/workspace"
	}
	return filepath.Join(home, ".pelican", "workspace")
}

func expandHome(p string) string {
	if len(p) >= 2 && p[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	return p
}
