package authz

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/taskhive/taskhive/internal/shared"
)

// DecisionRecorder receives every middleware authorization outcome, for
// metrics.
type DecisionRecorder interface {
	RecordDecision(resource, action string, allowed bool)
}

// Middleware wires the decision engine into the HTTP layer.
type Middleware struct {
	Resolver IdentityResolver
	Logger   *slog.Logger
	Metrics  DecisionRecorder
}

// Authenticate resolves the session user into an Identity and stores it in
// the request context. Requests without a valid session are rejected.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		identity, err := m.Resolver.ResolveIdentity(r.Context(), userID)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("resolve identity", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// Require gates a route on the decision engine for the given resource and
// action. It must run after Authenticate.
func (m Middleware) Require(resource Resource, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if identity == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			decision := CanPerformAction(identity.Role, identity.Tier, resource, action, nil)
			if m.Metrics != nil {
				m.Metrics.RecordDecision(string(resource), string(action), decision.Allowed)
			}
			if !decision.Allowed {
				if m.Logger != nil {
					m.Logger.Info("authorization denied",
						slog.Int64("user_id", identity.UserID),
						slog.String("resource", string(resource)),
						slog.String("action", string(action)),
						slog.String("reason", decision.Reason))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminFeatures gates routes reserved for admins and Enterprise
// accounts.
func (m Middleware) RequireAdminFeatures(next http.Handler) http.Handler {
	return m.gate(next, CanAccessAdminFeatures)
}

// RequireUserDirectory gates the user directory listing.
func (m Middleware) RequireUserDirectory(next http.Handler) http.Handler {
	return m.gate(next, CanListUsers)
}

func (m Middleware) gate(next http.Handler, allowed func(Role, SubscriptionTier) bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := IdentityFromContext(r.Context())
		if identity == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if !allowed(identity.Role, identity.Tier) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
