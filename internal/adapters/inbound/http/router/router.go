package router

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"depositgate/internal/adapters/inbound/http/controllers"
	"depositgate/internal/infrastructure/ratelimit"
)

type Dependencies struct {
	HealthController   *controllers.HealthController
	SwaggerController  *controllers.SwaggerController
	DepositsController *controllers.DepositsController
	PoolController     *controllers.PoolController

	// RateLimiter may be nil; deposit creation is then unlimited.
	RateLimiter     *ratelimit.RedisRequestLimiter
	RateLimit       int
	RateLimitWindow time.Duration
	Logger          *log.Logger
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", deps.HealthController.GetHealth)
	r.Get("/swagger", deps.SwaggerController.RedirectToIndex)
	r.Get("/swagger/openapi.yaml", deps.SwaggerController.GetOpenAPISpec)
	r.Get("/swagger/*", deps.SwaggerController.ServeUI)

	r.Route("/v1", func(r chi.Router) {
		r.With(rateLimitMiddleware(deps)).Post("/deposits", deps.DepositsController.RequestDeposit)
		r.Get("/deposits/{id}", deps.DepositsController.GetDeposit)
		r.Get("/pool/status", deps.PoolController.GetPoolStatus)
		r.Post("/pool/addresses", deps.PoolController.SeedAddresses)
	})

	return r
}

// rateLimitMiddleware throttles deposit creation per client IP. Redis errors
// fail open so a limiter outage never blocks deposits.
func rateLimitMiddleware(deps Dependencies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if deps.RateLimiter == nil || deps.RateLimit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			count, retryAfter, err := deps.RateLimiter.Consume(
				r.Context(), "deposits_create", r.RemoteAddr, deps.RateLimit, deps.RateLimitWindow,
			)
			if err != nil {
				if deps.Logger != nil {
					deps.Logger.Printf("rate limiter error path=%s error=%v", r.URL.Path, err)
				}
				next.ServeHTTP(w, r)
				return
			}
			if count > deps.RateLimit {
				w.Header().Set("Retry-After", fmt.Sprint(retryAfter))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"too many deposit requests"}}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
