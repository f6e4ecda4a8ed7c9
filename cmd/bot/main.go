// Bostossauro is a WhatsApp group bot: it logs conversations, answers
// AI-backed commands through Gemini, and carries a handful of utility
// commands (dice, currency, weather, game stats).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"bostossauro/internal/bot"
	"bostossauro/internal/config"
	"bostossauro/internal/database"
	"bostossauro/internal/gemini"
	"bostossauro/internal/logger"
	"bostossauro/internal/media"
	"bostossauro/internal/scheduler"
	"bostossauro/internal/services/currency"
	"bostossauro/internal/services/gamestats"
	"bostossauro/internal/services/weather"
	"bostossauro/internal/usage"
	"bostossauro/internal/whatsapp"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.LogLevel, cfg.LogJSON)
	log.Info("Starting Bostossauro")

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		log.Error("Failed to open database", "error", err)
		return 1
	}
	defer database.CloseDB(db)

	roDB, err := database.NewReadOnlyDB(cfg.DBPath)
	if err != nil {
		log.Error("Failed to open read-only database", "error", err)
		return 1
	}
	defer database.CloseDB(roDB)

	store := database.NewStore(db, roDB, log)
	tracker := usage.NewFileTracker(cfg.UsagePath, log)

	aiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, log)
	if err != nil {
		log.Error("Failed to create Gemini client", "error", err)
		return 1
	}

	selector := bot.NewSelector(tracker, cfg.ModelLimits, cfg.DefaultModelLimit, log)
	prompts := bot.NewPromptBuilder(store, log)
	processor := bot.NewProcessor(aiClient, selector, tracker, store, log)
	recaller := bot.NewRecaller(aiClient, selector, tracker, store, log)

	var weatherSvc bot.WeatherService
	if cfg.WeatherAPIKey != "" {
		weatherSvc = weather.New(cfg.WeatherAPIKey, "", log)
	} else {
		log.Warn("Weather API key not configured, !clima disabled")
	}

	var gameStatsSvc bot.GameStatsService
	if cfg.RiotAPIKey != "" {
		gameStatsSvc = gamestats.New(cfg.RiotAPIKey, "", "", log)
	} else {
		log.Warn("Riot API key not configured, !lol disabled")
	}

	currencySvc := currency.New("", log)
	mediaProvider := media.NewFSProvider(cfg.AssetsDir, log)

	dispatcher := bot.NewDispatcher(
		store, prompts, processor, recaller, selector, tracker,
		weatherSvc, currencySvc, gameStatsSvc, mediaProvider,
		bot.Options{
			AdminJID:            cfg.AdminJID,
			SpamCooldown:        cfg.SpamCooldown,
			DailyAILimit:        cfg.DailyAILimit,
			DailyTranslateLimit: cfg.DailyTranslateLimit,
		},
		log,
	)

	transport, err := whatsapp.New(ctx, cfg.SessionPath, dispatcher, log)
	if err != nil {
		log.Error("Failed to create WhatsApp client", "error", err)
		return 1
	}
	dispatcher.SetTransport(transport)

	cron, err := scheduler.New(store, tracker, log)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := transport.Connect(gctx); err != nil {
			return err
		}
		cron.Start()
		<-gctx.Done()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		if err := cron.Stop(); err != nil {
			log.Error("Scheduler shutdown failed", "error", err)
		}
		transport.Disconnect()
		return nil
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("Bot terminated with error", "error", err)
		return 1
	}

	log.Info("Bostossauro stopped")
	return 0
}
