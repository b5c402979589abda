package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/infra/metrics"
	"course-receipt-verification/internal/usecase"
)

// RateLimiter is what the validate route needs from the redis limiter.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Server wires the submission and admin routes to the use cases.
type Server struct {
	verifyUC usecase.VerifyUseCase
	reviewUC usecase.ReviewUseCase
	auth     *AuthManager
	limiter  RateLimiter
	policy   *config.PolicyConfig
	maxImage int64
	log      *zerolog.Logger
}

func NewServer(
	verifyUC usecase.VerifyUseCase,
	reviewUC usecase.ReviewUseCase,
	auth *AuthManager,
	limiter RateLimiter,
	policy *config.PolicyConfig,
	maxImageSize int,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		verifyUC: verifyUC,
		reviewUC: reviewUC,
		auth:     auth,
		limiter:  limiter,
		policy:   policy,
		maxImage: int64(maxImageSize),
		log:      logger,
	}
}

// Routes builds the router. Middleware order matters: trace id first so the
// request log carries it, recover outermost of the handlers proper.
func (s *Server) Routes(requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	wrap := func(h http.Handler) http.Handler {
		return Chain(h,
			TraceID(s.log),
			RequestLog(s.log),
			Recover(s.log),
			Timeout(requestTimeout),
		)
	}

	r.Method(http.MethodPost, "/api/v1/payments/validate", wrap(http.HandlerFunc(s.handleValidate)))
	r.Method(http.MethodPost, "/api/v1/payments/confirm", wrap(http.HandlerFunc(s.handleConfirm)))

	r.Method(http.MethodPost, "/api/v1/admin/login", wrap(http.HandlerFunc(s.handleAdminLogin)))
	r.Method(http.MethodPost, "/api/v1/admin/logout", wrap(http.HandlerFunc(s.handleAdminLogout)))

	r.Group(func(g chi.Router) {
		g.Use(func(next http.Handler) http.Handler { return wrap(s.auth.RequireAdmin(next)) })
		g.Get("/api/v1/admin/review", s.handleReviewList)
		g.Post("/api/v1/admin/review/{id}", s.handleReviewVerdict)
		g.Delete("/api/v1/admin/submissions/{id}", s.handleSubmissionDelete)
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", metrics.Handler())

	return r
}
