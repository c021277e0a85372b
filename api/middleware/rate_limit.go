package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jhpark-dev/shopmall-backend/api/responses"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
)

type rateLimiterStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// CheckoutRateLimitPolicy throttles order placement per user.
type CheckoutRateLimitPolicy struct {
	Window       time.Duration
	PerUserLimit int64
}

func (p CheckoutRateLimitPolicy) enabled() bool {
	return p.Window > 0 && p.PerUserLimit > 0
}

// CheckoutRateLimit caps how often a single user can place orders. The
// limiter fails open when the counter store errors so checkout never
// depends on redis availability.
func CheckoutRateLimit(policy CheckoutRateLimitPolicy, store rateLimiterStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actor := ActorFrom(ctx)
			if actor.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := fmt.Sprintf("checkout:%s", actor.UserID)
			allowed, count, err := store.FixedWindowAllow(ctx, scope, policy.PerUserLimit, policy.Window)
			if err != nil {
				if logg != nil {
					logg.Warn(logg.WithUserID(ctx, actor.UserID), "checkout rate limiter unavailable, allowing request")
				}
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				if logg != nil {
					fields := logg.WithFields(ctx, map[string]any{
						"user_id": actor.UserID,
						"count":   count,
						"limit":   policy.PerUserLimit,
					})
					logg.Warn(fields, "checkout rate limit exceeded")
				}
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many checkout attempts"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
