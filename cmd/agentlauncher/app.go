package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/hupe1980/agentlauncher"
	"github.com/hupe1980/agentlauncher/agent"
	"github.com/hupe1980/agentlauncher/config"
	"github.com/hupe1980/agentlauncher/core"
	"github.com/hupe1980/agentlauncher/eventbus"
	"github.com/hupe1980/agentlauncher/internal/demotools"
	"github.com/hupe1980/agentlauncher/logging"
	"github.com/hupe1980/agentlauncher/model"
	"github.com/hupe1980/agentlauncher/model/anthropic"
	"github.com/hupe1980/agentlauncher/model/mock"
	"github.com/hupe1980/agentlauncher/model/openai"
	"github.com/hupe1980/agentlauncher/natsbridge"
	"github.com/hupe1980/agentlauncher/session"
)

// app is a launcher wired from configuration, plus the resources it owns.
type app struct {
	cfg      *config.Config
	logger   logging.Logger
	launcher *agentlauncher.Launcher
	bridge   *natsbridge.Bridge
	ns       *natsserver.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := cfg.Logger()

	verbosity, err := eventbus.ParseVerbosity(cfg.Verbosity)
	if err != nil {
		return nil, err
	}

	primary, sub, err := buildProcessors(cfg)
	if err != nil {
		return nil, err
	}

	store, err := openSessionStore(cfg)
	if err != nil {
		return nil, err
	}

	l := agentlauncher.New(func(o *agentlauncher.Options) {
		o.Logger = logger
		o.Verbosity = verbosity
		o.PrimaryProcessor = primary
		o.SubAgentProcessor = sub
		o.MaxRetries = cfg.MaxRetries
		o.MaxParallelTools = cfg.MaxParallelTools
		o.DefaultTimeout = cfg.Timeout
		o.SessionStore = store
		if cfg.SystemPrompt != "" {
			o.SystemPrompt = cfg.SystemPrompt
		}
		if cfg.MaxConversation > 0 {
			o.ConversationProcessor = agent.TrimConversation(cfg.MaxConversation)
		}
	})
	if err := demotools.Register(l.Tools()); err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, launcher: l}
	if cfg.NATS.Enabled {
		if err := a.startBridge(ctx); err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}
	return a, nil
}

func buildProcessors(cfg *config.Config) (primary, sub core.Processor, err error) {
	build := func(name string) (model.Model, error) {
		switch cfg.Provider {
		case config.ProviderOpenAI:
			return openai.NewModel(func(o *openai.Options) {
				if name != "" {
					o.Model = name
				}
				o.Temperature = cfg.Temperature
				o.MaxCompletionTokens = int64(cfg.MaxTokens)
				o.Stream = cfg.Stream
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.BaseURL
			}), nil
		case config.ProviderAnthropic:
			return anthropic.NewModel(func(o *anthropic.Options) {
				if name != "" {
					o.Model = anthropicsdk.Model(name)
				}
				o.Temperature = cfg.Temperature
				o.MaxTokens = int64(cfg.MaxTokens)
				o.Stream = cfg.Stream
				o.APIKey = cfg.APIKey
				o.BaseURL = cfg.BaseURL
			}), nil
		case config.ProviderMock:
			return mock.NewScenario(uint64(time.Now().UnixNano()), func(o *mock.Options) {
				o.Stream = cfg.Stream
			}), nil
		default:
			return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
		}
	}

	m, err := build(cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	primary = model.Processor(m)

	if cfg.SubAgentModel != "" {
		sm, err := build(cfg.SubAgentModel)
		if err != nil {
			return nil, nil, err
		}
		sub = model.Processor(sm)
	}
	return primary, sub, nil
}

func openSessionStore(cfg *config.Config) (core.SessionStore, error) {
	switch cfg.Session.Driver {
	case config.SessionSQLite:
		store, err := session.OpenSQLite(cfg.Session.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return session.NewInMemoryStore(), nil
	}
}

func (a *app) startBridge(ctx context.Context) error {
	var (
		nc  *nats.Conn
		err error
	)
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		nc, err = natsbridge.Connect(a.cfg.NATS.URL)
	} else {
		a.ns, err = natsbridge.StartEmbedded(a.cfg.NATS.StoreDir)
		if err == nil {
			nc, err = natsbridge.ConnectInProcess(a.ns)
		}
	}
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}

	a.bridge, err = natsbridge.New(ctx, a.launcher.Bus(), nc, func(o *natsbridge.Options) {
		o.Logger = a.logger
		o.Prefix = a.cfg.NATS.SubjectPrefix
		o.Persist = a.cfg.NATS.Persist
	})
	if err != nil {
		nc.Close()
		return err
	}
	a.logger.Info("nats.bridge.started", "prefix", a.cfg.NATS.SubjectPrefix, "embedded", a.ns != nil)
	return nil
}

// Close shuts the launcher down before the bridge so the final events are
// still published.
func (a *app) Close(ctx context.Context) error {
	errs := []error{a.launcher.Close(ctx)}
	if a.bridge != nil {
		errs = append(errs, a.bridge.Close())
	}
	if a.ns != nil {
		errs = append(errs, natsbridge.ShutdownEmbedded(a.ns, 5*time.Second))
	}
	return errors.Join(errs...)
}
