package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/nikoksr/notify"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/berarma/TinyPedal/log"
	"github.com/berarma/TinyPedal/pkg/alert"
	"github.com/berarma/TinyPedal/pkg/config"
	"github.com/berarma/TinyPedal/pkg/display"
	"github.com/berarma/TinyPedal/pkg/fuel"
	"github.com/berarma/TinyPedal/pkg/modules"
	"github.com/berarma/TinyPedal/pkg/pubsub"
	"github.com/berarma/TinyPedal/pkg/stats"
	"github.com/berarma/TinyPedal/pkg/telemetry"
	"github.com/berarma/TinyPedal/pkg/webserver"
)

var devLog bool

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "connects to the telemetry feed and runs all modules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApp()
		},
	}
	cmd.Flags().BoolVar(&devLog, "log-dev", false,
		"human readable log output instead of json")
	return cmd
}

func runApp() error {
	if devLog {
		log.InitDevelopmentLogger()
	} else {
		log.InitProductionLogger()
	}
	defer log.Logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	feed := telemetry.NewFeed(config.TelemetryURL, log.Named("telemetry"))
	go feed.Run(ctx)

	if err := os.MkdirAll(config.FuelDir, 0o755); err != nil {
		return errors.Wrap(err, "create fuel directory")
	}
	store := fuel.NewStore(config.FuelDir, log.Named("fuel"))
	metrics := fuel.NewMetrics()
	ps := pubsub.NewPubSub[fuel.Info]()
	registry := modules.NewRegistry()

	engine := fuel.NewEngine(fuel.Config{
		UpdateInterval: time.Duration(config.UpdateIntervalMs) * time.Millisecond,
		IdleInterval:   time.Duration(config.IdleIntervalMs) * time.Millisecond,
	}, feed, store, metrics, ps, registry, log.Named("fuel"))

	statsManager, err := stats.NewManager(config.StatsDB)
	if err != nil {
		return err
	}
	defer statsManager.Close() //nolint:errcheck
	statsModule := stats.NewModule(stats.Config{}, feed, statsManager, registry, log.Named("stats"))

	exitChan := make(chan bool)

	var notifier notify.Notifier
	if config.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(config.TelegramToken)
		if err != nil {
			return errors.Wrap(err, "create telegram bot")
		}
		tg := &alert.Telegram{}
		tg.SetClient(bot)
		tg.AddReceivers(config.TelegramChatID)
		notifier = notify.NewWithServices(tg)
	}
	alerts := alert.NewManager(ctx, ps, notifier, config.LowFuelLaps, log.Named("alert"))
	go alerts.Start(exitChan)

	if config.DisplayIntervalMs > 0 {
		widget := display.NewManager(os.Stdout, metrics, statsModule,
			time.Duration(config.DisplayIntervalMs)*time.Millisecond)
		go widget.Run(exitChan)
	}

	if config.WebServerAddr != "" {
		server := webserver.NewManager(config.WebServerAddr, metrics, ps, statsModule, log.Named("webserver"))
		go func() {
			if err := server.Serve(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Logger.Error("webserver failed", zap.Error(err))
			}
		}()
	}

	engine.Start()
	statsModule.Start()

	<-ctx.Done()
	log.Logger.Info("shutting down")

	// Modules stop publishing before their consumers go away.
	registry.StopAll()
	close(exitChan)
	return nil
}
