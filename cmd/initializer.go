package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"doulitsa/internal/cache"
	"doulitsa/internal/config"
	"doulitsa/internal/handlers"
	"doulitsa/internal/mail"
	"doulitsa/internal/models"
	"doulitsa/internal/push"
	"doulitsa/internal/ratelimit"
	"doulitsa/internal/realtime"
	"doulitsa/internal/repositories"
	"doulitsa/internal/services"
	"doulitsa/utils"
)

type application struct {
	log *logrus.Logger
	cfg config.Config

	userHandler         *handlers.UserHandler
	profileHandler      *handlers.ProfileHandler
	categoryHandler     *handlers.CategoryHandler
	serviceHandler      *handlers.ServiceHandler
	reviewHandler       *handlers.ReviewHandler
	complaintHandler    *handlers.ComplaintHandler
	savedHandler        *handlers.SavedHandler
	bookingHandler      *handlers.BookingHandler
	chatHandler         *handlers.ChatHandler
	subscriptionHandler *handlers.SubscriptionHandler
	deviceHandler       *handlers.DeviceHandler
	adminHandler        *handlers.AdminHandler

	userService         *services.UserService
	chatService         *services.ChatService
	subscriptionService *services.SubscriptionService
	userRepo            *repositories.UserRepository

	tokens        *utils.Manager
	feed          *realtime.Feed
	wsManager     *WebSocketManager
	mailQueue     *mail.Queue
	authLimiter   *ratelimit.Limiter
	reportLimiter *ratelimit.Limiter
	metrics       *httpMetrics
}

func initializeApp(ctx context.Context, cfg config.Config, db *sql.DB, pool *pgxpool.Pool, log *logrus.Logger) (*application, error) {
	cache.SetLogger(log)

	store, err := newCacheStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	tokens, err := utils.NewManager(cfg.Realtime.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("realtime token manager: %w", err)
	}

	outbox, queue, err := newOutbox(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// Repositories
	userRepo := &repositories.UserRepository{DB: db}
	profileRepo := &repositories.ProfileRepository{DB: db}
	taxonomyRepo := &repositories.TaxonomyRepository{DB: db}
	serviceRepo := &repositories.ServiceRepository{DB: db}
	reviewRepo := &repositories.ReviewRepository{DB: db}
	reportRepo := &repositories.ReportRepository{DB: db}
	savedRepo := &repositories.SavedRepository{DB: db}
	bookingRepo := &repositories.BookingRepository{DB: db}
	subscriptionRepo := &repositories.SubscriptionRepository{DB: db}
	deviceRepo := &repositories.DeviceRepository{DB: db}

	var uploader services.Uploader
	if cfg.S3Enabled() {
		u, err := utils.NewUploader(utils.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			PublicURL: cfg.S3.PublicURL,
		})
		if err != nil {
			return nil, err
		}
		uploader = u
	} else {
		log.Warn("s3 is not configured: image uploads are disabled")
	}

	var pushClient push.Client
	if cfg.Firebase.CredentialsFile != "" {
		c, err := push.NewFirebaseClient(ctx, cfg.Firebase.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("firebase: %w", err)
		}
		pushClient = c
	}
	notifier := push.NewNotifier(pushClient, deviceRepo, log)

	var google services.GoogleProvider
	if cfg.GoogleLoginEnabled() {
		google = services.NewGoogleOAuth(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.RedirectURL)
	}

	publicURL := cfg.Server.PublicURL

	// Services
	userService := &services.UserService{
		UserRepo:     userRepo,
		TokenManager: tokens,
		Mail:         outbox,
		Google:       google,
		Cache:        store,
		Log:          log,
		JWTSecret:    cfg.Auth.JWTSecret,
		AccessTTL:    cfg.Auth.AccessTTL,
		RefreshTTL:   cfg.Auth.RefreshTTL,
		RealtimeTTL:  cfg.Realtime.TokenTTL,
	}
	profileService := &services.ProfileService{
		ProfileRepo:      profileRepo,
		UserRepo:         userRepo,
		TaxonomyRepo:     taxonomyRepo,
		SubscriptionRepo: subscriptionRepo,
		Uploader:         uploader,
		Cache:            store,
	}
	categoryService := &services.CategoryService{TaxonomyRepo: taxonomyRepo, Cache: store}
	serviceService := &services.ServiceService{
		ServiceRepo:      serviceRepo,
		ProfileRepo:      profileRepo,
		TaxonomyRepo:     taxonomyRepo,
		SubscriptionRepo: subscriptionRepo,
		UserRepo:         userRepo,
		Uploader:         uploader,
		Mail:             outbox,
		Cache:            store,
		PublicURL:        publicURL,
	}
	reviewService := &services.ReviewService{
		ReviewRepo:  reviewRepo,
		ServiceRepo: serviceRepo,
		ProfileRepo: profileRepo,
		BookingRepo: bookingRepo,
		UserRepo:    userRepo,
		Mail:        outbox,
		Cache:       store,
		PublicURL:   publicURL,
	}
	userService.Reviews = reviewService
	savedService := &services.SavedService{
		SavedRepo:   savedRepo,
		ServiceRepo: serviceRepo,
		ProfileRepo: profileRepo,
		Cache:       store,
	}
	bookingService := &services.BookingService{
		BookingRepo: bookingRepo,
		ServiceRepo: serviceRepo,
		UserRepo:    userRepo,
		Mail:        outbox,
		Push:        notifier,
		Cache:       store,
		PublicURL:   publicURL,
	}
	subscriptionService := &services.SubscriptionService{
		SubscriptionRepo: subscriptionRepo,
		ServiceRepo:      serviceRepo,
		ProfileRepo:      profileRepo,
		Cache:            store,
		Log:              log,
	}
	adminService := &services.AdminService{
		UserRepo: userRepo,
		Stats: services.StatsSource{
			Profiles:      profileRepo,
			Services:      serviceRepo,
			Reviews:       reviewRepo,
			Reports:       reportRepo,
			Bookings:      bookingRepo,
			Subscriptions: subscriptionRepo,
		},
		Cache:   store,
		Reviews: reviewService,
		Log:     log.WithField("component", "admin"),
	}

	targets := map[string]services.TargetChecker{
		models.ReportTargetService: serviceRepo,
		models.ReportTargetProfile: profileRepo,
		models.ReportTargetReview:  reviewRepo,
	}

	var (
		chatService *services.ChatService
		chatHandler *handlers.ChatHandler
		feed        *realtime.Feed
	)
	if pool != nil {
		chatRepo := &repositories.ChatRepository{Pool: pool}
		chatService = &services.ChatService{
			ChatRepo:  chatRepo,
			UserRepo:  userRepo,
			Push:      notifier,
			Mail:      outbox,
			PublicURL: publicURL,
		}
		chatHandler = &handlers.ChatHandler{Service: chatService}
		targets[models.ReportTargetMessage] = services.TargetCheckerFunc(chatRepo.MessageExists)
		feed = realtime.NewFeed(realtime.PostgresDialer(cfg.Realtime.DatabaseURL, cfg.Realtime.Channel), log.WithField("component", "realtime"))
		feed.Hydrate = realtime.MessageContent(chatRepo.GetMessage)
	}

	reportService := &services.ReportService{
		ReportRepo: reportRepo,
		Targets:    targets,
		Mail:       outbox,
		Cache:      store,
	}

	app := &application{
		log: log,
		cfg: cfg,

		userHandler:         &handlers.UserHandler{Service: userService},
		profileHandler:      &handlers.ProfileHandler{Service: profileService, Saved: savedService},
		categoryHandler:     &handlers.CategoryHandler{Service: categoryService},
		serviceHandler:      &handlers.ServiceHandler{Service: serviceService, Saved: savedService},
		reviewHandler:       &handlers.ReviewHandler{Service: reviewService},
		complaintHandler:    &handlers.ComplaintHandler{Reports: reportService, ContactService: &services.ContactService{Mail: outbox}},
		savedHandler:        &handlers.SavedHandler{Service: savedService},
		bookingHandler:      &handlers.BookingHandler{Service: bookingService},
		chatHandler:         chatHandler,
		subscriptionHandler: &handlers.SubscriptionHandler{Service: subscriptionService},
		deviceHandler:       &handlers.DeviceHandler{Service: &services.DeviceService{DeviceRepo: deviceRepo}},
		adminHandler:        &handlers.AdminHandler{Service: adminService},

		userService:         userService,
		chatService:         chatService,
		subscriptionService: subscriptionService,
		userRepo:            userRepo,

		tokens:        tokens,
		feed:          feed,
		mailQueue:     queue,
		authLimiter:   ratelimit.New(cfg.RateLimit.AuthPerMinute, time.Minute),
		reportLimiter: ratelimit.New(cfg.RateLimit.ReportPerMinute, time.Minute),
		metrics:       newHTTPMetrics(),
	}
	app.wsManager = NewWebSocketManager(log.WithField("component", "ws"))
	return app, nil
}

// newCacheStore uses Redis when an address is configured and a process-local
// store otherwise.
func newCacheStore(ctx context.Context, cfg config.Config, log *logrus.Logger) (cache.Store, error) {
	if cfg.Redis.Addr == "" {
		log.Info("redis is not configured: using the in-memory cache")
		return cache.NewMemoryStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return cache.NewRedisStore(rdb, cfg.Redis.Prefix), nil
}

// newOutbox wires templates and the async queue to Gmail, or to the log when
// Gmail is not configured.
func newOutbox(ctx context.Context, cfg config.Config, log *logrus.Logger) (*mail.Outbox, *mail.Queue, error) {
	tpl, err := mail.LoadTemplates()
	if err != nil {
		return nil, nil, fmt.Errorf("mail templates: %w", err)
	}

	var sender mail.Mailer = mail.LogMailer{Log: log}
	if cfg.GmailEnabled() {
		g, err := mail.NewGmailMailer(ctx, mail.GmailConfig{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: cfg.Gmail.ClientSecret,
			RefreshToken: cfg.Gmail.RefreshToken,
			Sender:       cfg.Gmail.Sender,
			SenderName:   "Doulitsa",
		})
		if err != nil {
			return nil, nil, err
		}
		sender = g
	}

	mlog := log.WithField("component", "mail")
	queue := mail.NewQueue(sender, cfg.Gmail.Workers, 200, mlog)
	return mail.NewOutbox(tpl, queue, cfg.Gmail.AdminEmail, mlog), queue, nil
}

func addSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
		next.ServeHTTP(w, r)
	})
}
