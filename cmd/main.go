package main

import (
	"context"
	"errors"
	"flag"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"doulitsa/internal/config"
	"doulitsa/internal/migrations"
	"doulitsa/internal/repositories"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logrus.New()

	if err := godotenv.Load(); err != nil {
		log.WithError(err).Debug(".env not loaded")
	}

	defaultConfig := os.Getenv("DOULITSA_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config/config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to the YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	configureLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.OpenMySQL(ctx, cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("open content database")
	}
	defer db.Close()

	var pool *pgxpool.Pool
	if cfg.Realtime.DatabaseURL != "" {
		pool, err = repositories.OpenPostgres(ctx, cfg.Realtime.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("open chat database")
		}
		defer pool.Close()
	} else {
		log.Warn("realtime.database_url is empty: chat and realtime are disabled")
	}

	if cfg.Database.AutoMigrate {
		if err := migrations.UpAll(ctx, db, pool); err != nil {
			log.WithError(err).Fatal("apply migrations")
		}
	}

	app, err := initializeApp(ctx, cfg, db, pool, log)
	if err != nil {
		log.WithError(err).Fatal("initialize application")
	}

	go app.wsManager.Run(ctx)
	if app.feed != nil {
		go app.feed.Run(ctx)
	}
	go app.authLimiter.Run(ctx, 10*time.Minute)
	go app.reportLimiter.Run(ctx, 10*time.Minute)
	startSubscriptionCleaner(ctx, app)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: true,
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Refresh-Token"},
		ExposedHeaders:   []string{"Authorization", "Retry-After"},
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      addSecurityHeaders(c.Handler(app.routes())),
		ErrorLog:     newStdLogger(log),
		IdleTimeout:  time.Minute,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("http shutdown")
		}
	}()

	log.WithField("addr", cfg.Server.Address).Info("starting server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("http server")
	}

	app.mailQueue.Close()
	log.Info("server stopped")
}

func configureLogger(log *logrus.Logger, cfg config.Config) {
	if lvl, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if cfg.Log.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// newStdLogger routes net/http server errors into logrus.
func newStdLogger(log *logrus.Logger) *stdlog.Logger {
	return stdlog.New(log.WriterLevel(logrus.ErrorLevel), "", 0)
}
