package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/jhpark-dev/shopmall-backend/api/responses"
	"github.com/jhpark-dev/shopmall-backend/internal/orders"
	pkgerrors "github.com/jhpark-dev/shopmall-backend/pkg/errors"
	"github.com/jhpark-dev/shopmall-backend/pkg/logger"
)

// Identity headers set by the API gateway, which owns authentication.
const (
	userIDHeader = "X-User-Id"
	adminHeader  = "X-Admin"
)

type actorCtxKey struct{}

// Identity extracts the gateway-provided caller identity into the context.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := orders.Actor{
				UserID: strings.TrimSpace(r.Header.Get(userIDHeader)),
				Admin:  strings.EqualFold(r.Header.Get(adminHeader), "true"),
			}

			ctx := context.WithValue(r.Context(), actorCtxKey{}, actor)
			if logg != nil && actor.UserID != "" {
				ctx = logg.WithUserID(ctx, actor.UserID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithActor stores a caller identity on the context directly.
func WithActor(ctx context.Context, actor orders.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFrom returns the caller identity stored by Identity.
func ActorFrom(ctx context.Context) orders.Actor {
	actor, _ := ctx.Value(actorCtxKey{}).(orders.Actor)
	return actor
}

// RequireUser rejects requests without a user identity.
func RequireUser(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ActorFrom(r.Context()).UserID == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests without the admin flag.
func RequireAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ActorFrom(r.Context()).Admin {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
