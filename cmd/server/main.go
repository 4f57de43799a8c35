// Command server runs the fragmentd gateway.
//
// Configuration is layered: built-in defaults, an optional YAML file
// (-config flag, FRAGMENTD_CONFIG, ./config.yaml, /etc/fragmentd/config.yaml),
// FRAGMENTD_* environment overrides, and _file secret references.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/client"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"

	"github.com/fragmentd/fragmentd/pkg/auth"
	"github.com/fragmentd/fragmentd/pkg/auth/apikey"
	"github.com/fragmentd/fragmentd/pkg/config"
	"github.com/fragmentd/fragmentd/pkg/engine"
	"github.com/fragmentd/fragmentd/pkg/fragment"
	"github.com/fragmentd/fragmentd/pkg/mcp"
	"github.com/fragmentd/fragmentd/pkg/observability"
	"github.com/fragmentd/fragmentd/pkg/provider/openaicompat"
	"github.com/fragmentd/fragmentd/pkg/sandbox"
	"github.com/fragmentd/fragmentd/pkg/sandbox/kubernetes"
	"github.com/fragmentd/fragmentd/pkg/storage"
	"github.com/fragmentd/fragmentd/pkg/storage/memory"
	"github.com/fragmentd/fragmentd/pkg/storage/postgres"
	"github.com/fragmentd/fragmentd/pkg/templates"
	"github.com/fragmentd/fragmentd/pkg/transport"
	transporthttp "github.com/fragmentd/fragmentd/pkg/transport/http"
	"github.com/fragmentd/fragmentd/pkg/webhook"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Workspace storage.
	var store storage.WorkspaceStore
	switch cfg.Storage.Type {
	case "postgres":
		store, err = postgres.New(ctx, postgres.Config{
			DSN:            cfg.Storage.Postgres.DSN,
			MaxConns:       cfg.Storage.Postgres.MaxConns,
			MigrateOnStart: cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		logger.Info("storage enabled", "type", "postgres")
	default:
		store = memory.New()
		logger.Info("storage enabled", "type", "memory")
	}
	defer store.Close()

	// Template catalog.
	catalog, err := templates.Load(cfg.Templates.ManifestPath, logger)
	if err != nil {
		return fmt.Errorf("loading template catalog: %w", err)
	}

	// Sandbox provisioning.
	var provisioner sandbox.Provisioner
	switch cfg.Sandbox.Mode {
	case "kubernetes":
		scheme, err := kubernetes.NewScheme()
		if err != nil {
			return fmt.Errorf("building sandbox scheme: %w", err)
		}
		restCfg, err := ctrlconfig.GetConfig()
		if err != nil {
			return fmt.Errorf("loading kubeconfig: %w", err)
		}
		cl, err := client.New(restCfg, client.Options{Scheme: scheme})
		if err != nil {
			return fmt.Errorf("creating kubernetes client: %w", err)
		}
		provisioner = kubernetes.NewClaimProvisioner(cl, cfg.Sandbox.Namespace, cfg.Sandbox.ProvisionTimeout)
		logger.Info("sandbox mode", "mode", "kubernetes", "namespace", cfg.Sandbox.Namespace)
	default:
		provisioner = sandbox.NewStaticProvisioner(cfg.Sandbox.RunnerURL)
		logger.Info("sandbox mode", "mode", "static", "runner_url", cfg.Sandbox.RunnerURL)
	}
	manager := sandbox.NewManager(provisioner)
	defer manager.Close()

	// Model backend and generation core.
	model := openaicompat.NewClient(cfg.Model.BackendURL, cfg.Model.APIKey, cfg.Model.DefaultModel, cfg.Model.Timeout)
	defer model.Close()

	executor := engine.New(manager, catalog, logger)
	consumer := fragment.NewConsumer(model, executor, catalog)
	core := transport.Chain(
		transport.Recovery(),
		transport.RequestID(),
		transport.Logging(logger),
	)(engine.NewService(consumer, logger))

	// Billing webhook, enabled only with a signing secret.
	var billing http.Handler
	if cfg.Billing.WebhookSecret != "" {
		billing = webhook.NewHandler(cfg.Billing.WebhookSecret, webhook.SinkFunc(func(ev webhook.BillingEvent) error {
			logger.Info("billing event received",
				"event_id", ev.ID, "type", ev.Type, "user_id", ev.UserID, "plan", ev.Plan)
			return nil
		}), logger)
	}

	adapter := transporthttp.NewAdapter(core, store, manager, catalog, billing, logger)

	mux := http.NewServeMux()
	mux.Handle("/", adapter)
	if cfg.Observability.Metrics.Enabled {
		mux.Handle("GET "+cfg.Observability.Metrics.Path, promhttp.Handler())
	}
	if cfg.MCP.Enabled {
		mcpServer := mcp.NewServer(manager, version, logger)
		mux.Handle(cfg.MCP.Path, mcpServer.HTTPHandler())
		logger.Info("mcp tool server enabled", "path", cfg.MCP.Path)
	}

	handler := transporthttp.WithRequestID(
		observability.MetricsMiddleware(
			auth.Middleware(buildAuthChain(cfg.Auth), auth.DefaultBypassEndpoints)(mux)))

	srv := transporthttp.NewServer(transporthttp.ServerConfig{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, handler, logger)

	logger.Info("fragmentd starting",
		"version", version,
		"port", cfg.Server.Port,
		"backend", cfg.Model.BackendURL,
		"model", cfg.Model.DefaultModel)
	return srv.ListenAndServe(ctx)
}

// buildAuthChain assembles the voting chain from configuration. Without
// configured keys the chain admits every request as the anonymous user.
func buildAuthChain(cfg config.AuthConfig) *auth.Chain {
	chain := &auth.Chain{DefaultDecision: auth.Yes}
	if cfg.Type != "apikey" {
		return chain
	}

	entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		entries = append(entries, apikey.RawKeyEntry{
			Key:      k.Key,
			Identity: auth.Identity{UserID: k.UserID},
		})
	}
	chain.Authenticators = []auth.Authenticator{apikey.New(entries)}
	chain.DefaultDecision = auth.No
	return chain
}
