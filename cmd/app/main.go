package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/domain/ports/adapter"
	notifyAdapters "course-receipt-verification/internal/infra/adapters/notify"
	visionAdapters "course-receipt-verification/internal/infra/adapters/vision"
	"course-receipt-verification/internal/infra/api"
	pg "course-receipt-verification/internal/infra/db/postgres"
	"course-receipt-verification/internal/infra/logging"
	"course-receipt-verification/internal/infra/metrics"
	red "course-receipt-verification/internal/infra/redis"
	"course-receipt-verification/internal/infra/sched"
	"course-receipt-verification/internal/usecase"

	"course-receipt-verification/internal/domain/model"
)

// set via -ldflags at build time
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop providers allowed)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	subRepo := pg.NewSubmissionRepo(pool)
	fpRepo := pg.NewFingerprintRepo(pool)
	enrollRepo := pg.NewEnrollmentRepo(pool)
	courseRepo := pg.NewCourseRepo(pool)
	attemptRepo := pg.NewAttemptRepo(pool)

	// ---- Vision extractor (Gemini -> OpenAI fallback) ----
	prompt := buildVisionPrompt(&cfg.Policy)
	var providers []adapter.FieldExtractor
	if cfg.Vision.GeminiKey != "" {
		g, err := visionAdapters.NewGeminiExtractor(ctx, cfg.Vision.GeminiKey, cfg.Vision.GeminiURL, cfg.Vision.GeminiModel, prompt)
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini extractor")
		}
		providers = append(providers, visionAdapters.NewInstrumented(g))
		logger.Info().Str("model", cfg.Vision.GeminiModel).Msg("vision provider: gemini")
	}
	if cfg.Vision.OpenAIKey != "" {
		o, err := visionAdapters.NewOpenAIExtractor(cfg.Vision.OpenAIKey, cfg.Vision.OpenAIURL, cfg.Vision.OpenAIModel, prompt)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai extractor")
		}
		providers = append(providers, visionAdapters.NewInstrumented(o))
		logger.Info().Str("model", cfg.Vision.OpenAIModel).Msg("vision provider: openai")
	}
	var extractor adapter.FieldExtractor
	switch {
	case len(providers) > 0:
		extractor = visionAdapters.NewMultiExtractor(providers...)
	case cfg.Runtime.Dev:
		extractor = visionAdapters.NewNoopExtractor()
		logger.Warn().Msg("no vision provider configured; using noop extractor")
	default:
		logger.Fatal().Msg("no vision provider configured: set vision.gemini_key or vision.openai_key")
	}

	// ---- Notifier ----
	var channels []adapter.Notifier
	if cfg.Notify.SMTP.Host != "" {
		channels = append(channels, notifyAdapters.NewEmailNotifier(
			cfg.Notify.SMTP.Host, cfg.Notify.SMTP.Port, cfg.Notify.SMTP.From,
			cfg.Notify.SMTP.Username, cfg.Notify.SMTP.Password))
	}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notifyAdapters.NewTelegramNotifier(cfg.Notify.Telegram.Token, cfg.Notify.Telegram.AdminChatID)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		channels = append(channels, tg)
	}
	var notifier adapter.Notifier
	if len(channels) > 0 {
		notifier = notifyAdapters.NewMultiNotifier(channels...)
	} else {
		notifier = notifyAdapters.NewNoopNotifier()
		logger.Warn().Msg("no notification channel configured")
	}

	// ---- Use cases ----
	enrollUC := usecase.NewEnrollUseCase(enrollRepo, courseRepo, attemptRepo, tm, &cfg.Policy, logger)
	verifyUC := usecase.NewVerifyUseCase(
		subRepo, fpRepo, attemptRepo, enrollRepo, enrollUC,
		extractor, notifier, locker, tm, &cfg.Policy,
		cfg.Vision.Timeout, cfg.Redis.LockTTL, logger,
	)
	reviewNotify := func(sub *model.PaymentSubmission) {
		go func() {
			nctx, ncancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer ncancel()
			if err := notifier.SubmissionDecided(nctx, sub); err != nil {
				logger.Warn().Err(err).Str("submission_id", sub.ID).Msg("review notification failed")
			}
		}()
	}
	reviewUC := usecase.NewReviewUseCase(subRepo, fpRepo, enrollUC, reviewNotify, logger)

	// ---- HTTP server ----
	auth := api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.Password, !cfg.Runtime.Dev, cfg.Admin.SessionTTL)
	srv := api.NewServer(verifyUC, reviewUC, auth, rateLimiter, &cfg.Policy, cfg.Vision.MaxImageSize, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(cfg.Server.RequestTimeout),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Expiry worker ----
	worker := sched.NewExpiryWorker(cfg.Policy.ExpirySweepInterval, enrollUC, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- DB pool gauge ----
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
			}
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shCancel()
	if err := server.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}

// buildVisionPrompt exposes the payee descriptor to the extraction prompt so
// the model can judge the recipient line directly.
func buildVisionPrompt(p *config.PolicyConfig) string {
	return visionAdapters.BuildPrompt(p.PayeeNames, p.PayeePhone)
}
