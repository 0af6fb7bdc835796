package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/handlers"
	"github.com/mp-gpt-consultant-go/internal/i18n"
	"github.com/mp-gpt-consultant-go/internal/marketplace"
	"github.com/mp-gpt-consultant-go/internal/middleware"
	"github.com/mp-gpt-consultant-go/internal/services/ai"
	"github.com/mp-gpt-consultant-go/internal/services/cache"
	"github.com/mp-gpt-consultant-go/internal/services/history"
	"github.com/mp-gpt-consultant-go/internal/services/settings"
	"github.com/mp-gpt-consultant-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting GPT Consultant...")

	// Initialize admin bot
	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		log.WithError(err).Fatal("Failed to create bot")
	}

	bot.Debug = cfg.Logging.Level == "debug"
	log.WithField("username", bot.Self.UserName).Info("Admin bot authorized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize settings storage
	backend, err := settings.NewBackend(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize settings backend")
	}

	store, err := settings.NewStore(ctx, backend, cfg.Model.APIKey, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize settings store")
	}

	// Initialize services
	historyManager := history.NewManager(store, cfg.Consultant.HistoryMaxMessages, cfg.Consultant.HistoryMaxChars, log)
	aiService := ai.NewClient(&cfg.Model, cfg.Consultant.SystemPrompt, log)
	answerCache := cache.NewCache(&cfg.Cache, log)
	market := marketplace.NewHTTPClient(&cfg.Marketplace, log)
	poller := marketplace.NewPoller(&cfg.Marketplace, log)

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize handlers
	consultant := handlers.NewConsultant(
		cfg,
		store,
		historyManager,
		aiService,
		market,
		answerCache,
		metrics,
		localizer,
		log,
	)

	admin := handlers.NewAdminHandler(
		bot,
		cfg,
		store,
		answerCache,
		rateLimiter,
		metrics,
		localizer,
		log,
	)

	// Admin console loop (Telegram long polling)
	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.Bot.UpdateTimeout
	updates := bot.GetUpdatesChan(u)

	go func() {
		for update := range updates {
			if update.CallbackQuery != nil {
				if err := admin.HandleCallback(ctx, update.CallbackQuery); err != nil {
					log.WithError(err).Error("Failed to handle callback query")
				}
				continue
			}

			if update.Message == nil {
				continue
			}

			if update.Message.IsCommand() {
				if err := admin.HandleCommand(ctx, update.Message); err != nil {
					log.WithError(err).Error("Failed to handle command")
				}
				continue
			}

			// Plain text goes to an active input prompt, if any.
			admin.HandleMessage(ctx, update.Message)
		}
	}()

	// Marketplace chat loop
	inbound := poller.Run(ctx)
	go func() {
		for msg := range inbound {
			consultant.HandleMessage(ctx, msg)
		}
	}()

	// Start periodic tasks
	go startPeriodicTasks(ctx, store, metrics, log)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Info("Shutdown signal received")

	cancel()
	bot.StopReceivingUpdates()

	// Give goroutines time to finish
	time.Sleep(2 * time.Second)

	log.Info("Consultant stopped")
}

// startPeriodicTasks refreshes gauge metrics from the settings store.
func startPeriodicTasks(ctx context.Context, store *settings.Store, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := store.Settings()
			metrics.SetKnownChats(float64(len(st.ChatState)))
		}
	}
}
