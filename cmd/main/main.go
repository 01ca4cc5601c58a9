package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tg-support-relay/internal/bot"
	"tg-support-relay/internal/config"
	"tg-support-relay/internal/crash"
	"tg-support-relay/internal/customization"
	"tg-support-relay/internal/events"
	"tg-support-relay/internal/handler"
	"tg-support-relay/internal/logger"
	"tg-support-relay/internal/relay"
	"tg-support-relay/internal/service"
	"tg-support-relay/internal/storage"
)

func main() {
	defer crash.RecoverWithStackAndExit("main")

	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Setup(cfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	if err := storage.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := storage.GetDB()

	linkRepo := storage.NewLinkRepository(db)
	aliasRepo := storage.NewAliasRepository(db)
	settingsRepo := storage.NewSettingsRepository(db)
	for name, migrate := range map[string]func() error{
		"message_links": linkRepo.MigrateTable,
		"agent_aliases": aliasRepo.MigrateTable,
		"bot_settings":  settingsRepo.MigrateTable,
	} {
		if err := migrate(); err != nil {
			log.Fatalf("Failed to migrate %s: %v", name, err)
		}
	}

	settingsSvc := service.NewSettingsService(settingsRepo)
	if err := settingsSvc.LoadAll(); err != nil {
		log.Fatalf("Failed to load tenant settings: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var web *bot.WebhookServer
	if cfg.Bot.Webhook.Endpoint != "" {
		web, err = bot.NewWebhookServer(cfg)
		if err != nil {
			log.Fatalf("Failed to set up webhook server: %v", err)
		}
	} else {
		logger.Infof("No webhook endpoint configured, tenants will long-poll")
	}

	engine := relay.NewEngine(linkRepo, cfg.Relay.AlbumFlushDelay)
	registry := customization.NewRegistry()
	handlers := handler.New(settingsSvc, linkRepo, aliasRepo, engine, registry)
	manager := bot.NewManager(cfg, handlers, settingsSvc, web)

	ackSvc := service.NewAckService(cfg.Relay.AckTimeout, manager)

	var publisher events.Publisher = events.NopPublisher{}
	var subscriber events.Subscriber
	if cfg.Events.Enabled {
		publisher, err = events.NewPublisher(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect event publisher: %v", err)
		}
		subscriber, err = events.NewSubscriber(cfg.Events.URL, cfg.Events.Exchange, 64, 4)
		if err != nil {
			log.Fatalf("Failed to connect event subscriber: %v", err)
		}
		subscriber.RegisterHandler(events.KeyTicketAck, ackSvc.HandleAck)
		if err := subscriber.Start(cfg.Events.AckQueue); err != nil {
			log.Fatalf("Failed to start event subscriber: %v", err)
		}
	} else if len(cfg.Customizations.HelperBots) > 0 {
		logger.Warningf("helper customizations configured without events; ticket events will be dropped")
	}

	for _, botID := range cfg.Customizations.HelperBots {
		registry.Register(botID, customization.NewHelper(publisher, ackSvc.Acks(), aliasRepo, "support-relay", cfg.Customizations.InfoBot))
	}

	if web != nil {
		crash.SafeGoroutine("http-server", func() {
			if err := web.Start(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("HTTP server error: %v", err)
			}
		})

		// Give the server time to bind before webhooks are registered.
		time.Sleep(500 * time.Millisecond)
	}

	if err := manager.StartAll(ctx); err != nil {
		log.Fatalf("Failed to start tenants: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	manager.StopAll()
	if subscriber != nil {
		if err := subscriber.Close(); err != nil {
			logger.Warningf("event subscriber close: %v", err)
		}
	}
	if err := publisher.Close(); err != nil {
		logger.Warningf("event publisher close: %v", err)
	}

	if web != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := web.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	log.Println("Server gracefully stopped")
}
