package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/gracechurch/tidings"
	"github.com/gracechurch/tidings/bolt"
	"github.com/gracechurch/tidings/broadcast"
	"github.com/gracechurch/tidings/gmail"
	"github.com/gracechurch/tidings/http"
	"github.com/gracechurch/tidings/postgres"
	"github.com/gracechurch/tidings/rabbitmq"
	"github.com/gracechurch/tidings/scheduler"
	"github.com/gracechurch/tidings/sqlite"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		log.Fatalf("invalid log level %q: %v", config.Log.Level, err)
	}
	zerolog.SetGlobalLevel(level)
	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := sentry.Init(sentry.ClientOptions{
		Dsn: config.Sentry.DSN,
	}); err != nil {
		log.Fatalf("sentry.Init: %v", err)
	}
	defer sentry.Flush(2 * time.Second)

	a, err := newApp(config)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
	}()

	if err := a.Run(ctx); err != nil {
		cancel()
		_ = a.Close()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	<-ctx.Done()

	if err := a.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*tidings.Config, error) {
	viper.SetConfigName("config")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("db.type", "bolt")
	viper.SetDefault("db.path", "tidings.db")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("amqp.queue", "broadcasts")
	viper.SetDefault("newsletter.dailyverse.cron.spec", scheduler.DefaultSpec)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config *tidings.Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	return config, nil
}

type app struct {
	config              *tidings.Config
	db                  tidings.Database
	subscriptionService tidings.SubscriptionService
	httpServer          *http.Server
	queue               *rabbitmq.QueueService
	dailyVerse          *scheduler.DailyVerse
	g                   *errgroup.Group
}

func newApp(config *tidings.Config) (*app, error) {
	db, ss, err := newStore(config)
	if err != nil {
		return nil, err
	}

	httpServer, err := http.NewServer(config)
	if err != nil {
		return nil, err
	}

	return &app{
		config:              config,
		db:                  db,
		subscriptionService: ss,
		httpServer:          httpServer,
	}, nil
}

func newStore(config *tidings.Config) (tidings.Database, tidings.SubscriptionService, error) {
	switch config.DB.Type {
	case "", "bolt":
		db := bolt.NewDB(config.DB.Path)
		return db, bolt.NewSubscriptionService(db), nil
	case "sqlite":
		db := sqlite.NewDB(config.DB.Path)
		return db, sqlite.NewSubscriptionService(db), nil
	case "postgres":
		db := postgres.NewDB(config.DB.DSN)
		return db, postgres.NewSubscriptionService(db), nil
	default:
		return nil, nil, errors.Errorf("unknown db.type %q", config.DB.Type)
	}
}

func (a *app) Run(ctx context.Context) error {
	if err := a.db.Open(); err != nil {
		return err
	}

	a.httpServer.Addr = a.config.HTTP.Addr
	a.httpServer.Domain = a.config.HTTP.Domain

	if err := a.httpServer.Open(); err != nil {
		return err
	}

	baseURL := a.httpServer.PublicURL()
	mailService := gmail.NewMailService(a.config, baseURL)
	broadcastService := broadcast.NewService(a.subscriptionService, mailService, a.config.Newsletter.From, baseURL)
	broadcastService.Delivered = a.httpServer.RecordDelivery

	a.httpServer.SubscriptionService = a.subscriptionService
	a.httpServer.MailService = mailService
	a.httpServer.BroadcastService = broadcastService

	if a.config.Newsletter.DailyVerse.Enabled {
		a.dailyVerse = scheduler.NewDailyVerse(a.config, broadcastService)
		if err := a.dailyVerse.Start(); err != nil {
			return err
		}
	}

	if a.config.AMQP.URL != "" {
		queue, err := rabbitmq.NewQueueService(a.config.AMQP.URL)
		if err != nil {
			return err
		}
		a.queue = queue

		var gctx context.Context
		a.g, gctx = errgroup.WithContext(ctx)
		a.g.Go(func() error {
			return broadcastService.Listen(gctx, queue, a.config.AMQP.Queue)
		})
	}

	zlog.Info().Str("addr", a.config.HTTP.Addr).Str("db", a.config.DB.Type).Msg("tidings started")

	return nil
}

func (a *app) Close() error {
	if a.dailyVerse != nil {
		a.dailyVerse.Stop()
	}

	if a.httpServer != nil {
		if err := a.httpServer.Close(); err != nil {
			return err
		}
	}

	if a.g != nil {
		if err := a.g.Wait(); err != nil {
			zlog.Error().Err(err).Msg("queue consumer stopped")
		}
	}

	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			return err
		}
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			return err
		}
	}

	return nil
}
