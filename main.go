package main

import (
	"context"
	"log"
	"os"

	"github.com/example/marketplace-messaging/config"
	"github.com/example/marketplace-messaging/modules/api"
	"github.com/example/marketplace-messaging/modules/auth"
	"github.com/example/marketplace-messaging/modules/inbox"
	"github.com/example/marketplace-messaging/modules/messaging"
	"github.com/example/marketplace-messaging/modules/store"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Marketplace Messaging - Fiber WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel := mono.LogLevelInfo
	if cfg.LogLevel == "error" {
		logLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(logLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	storeModule := store.NewModule(cfg.Database, logger)
	authModule := auth.NewModule(cfg.JWT, storeModule, logger)
	messagingModule := messaging.NewModule(cfg.Session, storeModule, logger)
	inboxModule := inbox.NewModule(cfg.Redis, storeModule, logger)
	apiModule := api.NewModule(cfg, logger)

	// The store is not exposed via ServiceContainer, so wire it by hand.
	apiModule.SetMessaging(messagingModule)
	apiModule.SetInbox(inboxModule)
	messagingModule.AddPersistedHook(inboxModule.InvalidateMessage)
	apiModule.AddHealthSources(storeModule, authModule, messagingModule, inboxModule)

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - store: message store (SQLite via GORM or Postgres via pgx)
	// - auth: verify-token service (ServiceProviderModule)
	// - messaging: registry, sessions, router (depends on auth, emits MessagePersisted)
	// - inbox: inbox reads with Redis cache (invalidated on persist, consumes MessagePersisted)
	// - api: Fiber HTTP/WebSocket server (depends on auth)
	app.Register(storeModule)
	app.Register(authModule)
	app.Register(messagingModule)
	app.Register(inboxModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	cache := "disabled"
	if cfg.Redis.Addr != "" {
		cache = cfg.Redis.Addr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("  - Database: %s", cfg.Database.Driver)
	log.Printf("  - Inbox cache: %s", cache)
	log.Println("")
	log.Printf("Endpoints (http://%s):", cfg.Addr())
	log.Println("  GET    /                       - Welcome")
	log.Println("  GET    /health                 - Module health")
	log.Println("  GET    /messages/inbox         - Received messages (Bearer token)")
	log.Println("  WS     /messages/ws?token=...  - Real-time chat")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
