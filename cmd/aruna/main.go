package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rahmatgani/aruna/pkg/channel"
	twiliochannel "github.com/rahmatgani/aruna/pkg/channel/twilio"
	"github.com/rahmatgani/aruna/pkg/config"
	"github.com/rahmatgani/aruna/pkg/configutil"
	"github.com/rahmatgani/aruna/pkg/engine"
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/language"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/logging"
	"github.com/rahmatgani/aruna/pkg/metrics"
	"github.com/rahmatgani/aruna/pkg/order"
	"github.com/rahmatgani/aruna/pkg/prompt"
	"github.com/rahmatgani/aruna/pkg/providers/mock"
	"github.com/rahmatgani/aruna/pkg/providers/openai"
	"github.com/rahmatgani/aruna/pkg/redact"
	"github.com/rahmatgani/aruna/pkg/resilience"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/runner"
	"github.com/rahmatgani/aruna/pkg/server"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
	"github.com/rahmatgani/aruna/pkg/webhook"
)

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
}

type twilioSettings struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	observer, closeObserver, err := buildObserver(cfg)
	if err != nil {
		return err
	}

	adapter, err := buildLLMAdapter(cfg.Vendors.LLM)
	if err != nil {
		return err
	}

	provider := tenant.NewStaticProvider()
	index := retrieval.NewMemoryIndex()
	for _, t := range cfg.Tenants {
		provider.SetProfile(tenant.Profile{
			ID:              t.ID,
			Name:            t.Name,
			Industry:        t.Industry,
			Description:     t.Description,
			CorpusLanguages: t.CorpusLanguages,
		})
		items := make([]tenant.InventoryItem, 0, len(t.Inventory))
		for _, it := range t.Inventory {
			items = append(items, tenant.InventoryItem{
				SKU:       it.SKU,
				Name:      it.Name,
				Price:     it.Price,
				Currency:  it.Currency,
				Available: it.Available,
				Unit:      it.Unit,
			})
		}
		provider.SetInventory(t.ID, items)
		for _, doc := range t.Documents {
			index.Add(t.ID, retrieval.Document{Content: doc.Content, Source: doc.Source})
		}
	}

	dispatcher := buildDispatcher(cfg, logger, observer)
	router, err := buildRouter(cfg, logger, observer)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Deps{
		Detector:   language.NewDetector(cfg.Languages.Default),
		Classifier: intent.NewClassifier(adapter, logging.NewComponentLogger(logger, "intent"), intent.WithTimeout(configutil.DurationMS(cfg.Intent.TimeoutMS, 3*time.Second)), intent.WithHistoryWindow(cfg.Intent.HistoryWindow)),
		Retriever:  retrieval.NewRetriever(index, nil, logging.NewComponentLogger(logger, "retrieval")),
		Assembler:  prompt.NewAssembler(cfg.Context.MaxHistory),
		Adapter:    adapter,
		Tracker:    order.NewTracker(),
		Store:      session.NewMemoryStore(cfg.Session.MaxTurns),
		Profiles:   provider,
		Inventory:  provider,
		Dispatcher: dispatcher,
		Router:     router,
		Breaker:    resilience.NewCircuitBreaker(cfg.Resilience.CircuitThreshold, configutil.DurationMS(cfg.Resilience.CircuitCooldown, 30*time.Second)),
		Retry: llm.RetryConfig{
			MaxAttempts: cfg.Resilience.RetryMaxAttempts,
			BaseDelay:   configutil.DurationMS(cfg.Resilience.RetryBaseDelayMS, 200*time.Millisecond),
			MaxDelay:    configutil.DurationMS(cfg.Resilience.RetryMaxDelayMS, 5*time.Second),
			Jitter:      cfg.Resilience.RetryJitter,
		},
		Logger:   logging.NewComponentLogger(logger, "engine"),
		Observer: observer,
	})

	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		ReadTimeoutMS:     cfg.Server.ReadTimeoutMS,
		WriteTimeoutMS:    cfg.Server.WriteTimeoutMS,
		ShutdownTimeoutMS: cfg.Server.ShutdownTimeoutMS,
	}, eng, logging.NewComponentLogger(logger, "server"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lr := runner.NewLifecycleRunner(drainFunc(func() error {
		err := srv.Stop()
		if dispatcher != nil {
			dispatcher.Close()
		}
		if closeObserver != nil {
			closeObserver()
		}
		return err
	}), runner.Hooks{
		OnStart: func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("server_start_failed", "error", err)
				stop()
			}
			logger.Info("aruna_ready", "addr", cfg.Server.Addr, "provider", adapter.Name())
		},
		OnStop: func() { logger.Info("aruna_stopped") },
	}, configutil.DurationMS(cfg.Server.ShutdownTimeoutMS, 10*time.Second))

	return lr.Run(ctx)
}

func buildLLMAdapter(vendor config.VendorConfig) (llm.Adapter, error) {
	switch strings.ToLower(vendor.Provider) {
	case "openai":
		var s openAISettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode openai settings: %w", err)
		}
		if err := configutil.RequireString(s.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		a := openai.NewAdapter(s.APIKey, s.Model)
		if s.BaseURL != "" {
			a.BaseURL = s.BaseURL
		}
		return a, nil
	case "mock":
		var s mockLLMSettings
		if err := configutil.DecodeSettings(vendor.Settings, &s); err != nil {
			return nil, fmt.Errorf("decode mock settings: %w", err)
		}
		return mock.NewLLMAdapter(mock.LLMConfig{ResponseText: s.ResponseText}), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", vendor.Provider)
	}
}

func buildDispatcher(cfg config.Config, logger *slog.Logger, observer metrics.Observer) *webhook.Dispatcher {
	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		return nil
	}
	client := webhook.NewClient(cfg.Webhook.URL, cfg.Webhook.Secret, configutil.DurationMS(cfg.Webhook.TimeoutMS, 10*time.Second))
	deliverer := webhook.NewDeliverer(client, webhook.RetryConfig{
		MaxAttempts: cfg.Webhook.MaxAttempts,
		BaseDelay:   configutil.DurationMS(cfg.Webhook.BaseDelayMS, 2*time.Second),
		MaxDelay:    configutil.DurationMS(cfg.Webhook.MaxDelayMS, 30*time.Second),
	}, logging.NewComponentLogger(logger, "webhook"), observer)
	return webhook.NewDispatcher(deliverer, webhook.DispatcherOptions{
		Workers:   cfg.Webhook.Workers,
		QueueSize: cfg.Webhook.QueueSize,
	}, logging.NewComponentLogger(logger, "webhook"), observer)
}

func buildRouter(cfg config.Config, logger *slog.Logger, observer metrics.Observer) (*channel.Router, error) {
	if len(cfg.Channels.Relay) == 0 {
		return nil, nil
	}
	router := channel.NewRouter(resilience.NewRetryPolicy(2, 500*time.Millisecond), logging.NewComponentLogger(logger, "channel"), observer)
	for name, ch := range cfg.Channels.Relay {
		switch strings.ToLower(ch.Adapter) {
		case "twilio":
			var s twilioSettings
			if err := configutil.DecodeSettings(ch.Settings, &s); err != nil {
				return nil, fmt.Errorf("decode twilio settings for %s: %w", name, err)
			}
			router.Register(name, twiliochannel.NewMessenger(twiliochannel.Config{
				AccountSID: s.AccountSID,
				AuthToken:  s.AuthToken,
				From:       s.From,
			}))
		default:
			return nil, fmt.Errorf("unknown relay adapter %q for channel %s", ch.Adapter, name)
		}
	}
	return router, nil
}

func buildObserver(cfg config.Config) (metrics.Observer, func(), error) {
	path := strings.TrimSpace(cfg.Observability.MetricsPath)
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open metrics file: %w", err)
	}
	async := metrics.NewAsyncObserver(metrics.NewJSONLObserver(f), 256)
	return async, func() {
		async.Close()
		_ = f.Close()
	}, nil
}

type drainFunc func() error

func (f drainFunc) Drain() error { return f() }
