// Package dependency wires core pelican services using go.uber.org/dig.
package dependency

import (
	"path/filepath"

	"go.uber.org/dig"

	"github.com/pelicandev/pelican/internal/agent"
	"github.com/pelicandev/pelican/internal/bus"
	"github.com/pelicandev/pelican/internal/config"
	"github.com/pelicandev/pelican/internal/cron"
	"github.com/pelicandev/pelican/internal/providers"
	"github.com/pelicandev/pelican/internal/schema"
	"github.com/pelicandev/pelican/internal/store"
	"github.com/pelicandev/pelican/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider schema.LLMProvider
	msgBus   *bus.MessageBus
	loop     *agent.AgentLoop
	cronSvc  *cron.Service
	store    *store.Store
}

func (c *Container) Provider() schema.LLMProvider { return c.provider }
func (c *Container) MessageBus() *bus.MessageBus  { return c.msgBus }
func (c *Container) AgentLoop() *agent.AgentLoop  { return c.loop }
func (c *Container) CronService() *cron.Service   { return c.cronSvc }
func (c *Container) Store() *store.Store          { return c.store }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	for _, ctor := range []any{
		func() *config.Config { return cfg },
		newProvider,
		newMessageBus,
		newStore,
		newCronService,
		newConsolidator,
		newAssembler,
		newToolList,
		newAgentLoop,
	} {
		if err := d.Provide(ctor); err != nil {
			return nil, err
		}
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		msgBus *bus.MessageBus,
		loop *agent.AgentLoop,
		cronSvc *cron.Service,
		st *store.Store,
	) {
		result = &Container{
			provider: provider,
			msgBus:   msgBus,
			loop:     loop,
			cronSvc:  cronSvc,
			store:    st,
		}
	})
	return result, err
}

func newProvider(cfg *config.Config) (schema.LLMProvider, error) {
	return providers.NewOpenAIProvider(cfg.LLM)
}

func newMessageBus() *bus.MessageBus {
	return bus.New(100)
}

func newStore(cfg *config.Config) (*store.Store, error) {
	return store.New(cfg.WorkspacePath())
}

func newCronService(cfg *config.Config) *cron.Service {
	return cron.NewService(filepath.Join(cfg.WorkspacePath(), "cron", "jobs.json"))
}

func newConsolidator(st *store.Store, p schema.LLMProvider, cfg *config.Config) *agent.Consolidator {
	return agent.NewConsolidator(st, p, cfg.Context)
}

func newAssembler(st *store.Store, cons *agent.Consolidator, cfg *config.Config) *agent.Assembler {
	return agent.NewAssembler(st, cons, cfg.Context, cfg.Owners)
}

func newToolList(cfg *config.Config, b *bus.MessageBus, st *store.Store, cronSvc *cron.Service) *tools.ToolList {
	return tools.NewToolList(
		tools.NewSaveMemoryTool(st),
		tools.NewMessageTool(b),
		tools.NewWebFetchTool(cfg.Tools.WebFetchMaxChars),
		tools.NewScheduleTool(cronSvc),
	)
}

func newAgentLoop(
	b *bus.MessageBus,
	p schema.LLMProvider,
	assembler *agent.Assembler,
	cons *agent.Consolidator,
	st *store.Store,
	tls *tools.ToolList,
	cfg *config.Config,
) *agent.AgentLoop {
	return agent.NewAgentLoop(b, p, assembler, cons, st, tls, cfg)
}
