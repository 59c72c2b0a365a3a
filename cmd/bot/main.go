package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"equb_tracker/internal/app"
	domainTelegram "equb_tracker/internal/domain/telegram"
	"equb_tracker/internal/infra/config"
	idb "equb_tracker/internal/infra/database"
	"equb_tracker/internal/infra/httpapi"
	"equb_tracker/internal/infra/logger"
	"equb_tracker/internal/infra/scheduler"
	"equb_tracker/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"timezone":    cfg.Timezone,
		"currency":    cfg.Currency,
		"telegram":    cfg.TelegramEnabled(),
	}).Info("Configuration loaded")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established and schema applied")

	store := idb.NewStore(db)

	// Telegram is optional; without a token notifications stay in-app only.
	var bot *telebot.Bot
	var telegramClient domainTelegram.Client
	if cfg.TelegramEnabled() {
		botLogger := logger.Component("telebot")
		bot, err = telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c telebot.Context) { // Global error handler
				entry := botLogger.WithError(err)
				if c != nil && c.Sender() != nil && c.Chat() != nil {
					entry = entry.WithFields(logrus.Fields{"sender_id": c.Sender().ID, "chat_id": c.Chat().ID})
				}
				entry.Error("Telegram handler error")
			},
		})
		if err != nil {
			mainLogger.WithError(err).Fatal("Could not create Telegram bot")
		}
		telegramClient = telegram.NewTelebotAdapter(bot)
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set; Telegram mirroring and the bot are disabled")
	}

	// Initialize services
	notifier := app.NewNotifier(store, telegramClient, logger.Component("notifier"))
	bridge := app.NewLedgerBridge(logger.Component("ledger_bridge"))
	equbService := app.NewEqubService(store, notifier, logger.Component("equb_service"))
	settlementService := app.NewSettlementService(store, bridge, notifier, logger.Component("settlement_service"), cfg.Currency)
	reminderService := app.NewReminderService(store, notifier, logger.Component("reminder_service"), app.ReminderOptions{
		Currency:    cfg.Currency,
		Location:    cfg.Location,
		RetryMirror: cfg.ReminderRetryMirror,
	})
	notificationService := app.NewNotificationService(store, notifier, settlementService, logger.Component("notification_service"))
	linkService := app.NewLinkService(store, notifier, logger.Component("link_service"))

	reminderScheduler := scheduler.NewReminderScheduler(reminderService, logger.Component("scheduler"), cfg.CronSpecReminderSweep, cfg.Location)
	if err := reminderScheduler.Start(); err != nil {
		mainLogger.WithError(err).Fatal("Could not schedule reminder sweep")
	}

	if bot != nil {
		botLogger := logger.Component("telegram")
		telegram.RegisterBotCommands(ctx, bot, linkService, equbService, cfg.Currency, botLogger)
		telegram.RegisterReminderCallbacks(ctx, bot, linkService, settlementService, notificationService, botLogger)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	handler := httpapi.NewHandler(equbService, settlementService, reminderService, notificationService, linkService, cfg.Location)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(handler, logger.Component("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			mainLogger.WithError(err).Error("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done() // Block until a signal is received

	mainLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if bot != nil {
		bot.Stop()
	}
	reminderScheduler.Stop()
	mainLogger.Info("Application shut down gracefully.")
}
