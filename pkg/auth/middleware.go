package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/medicore/portal/pkg/common/logger"
	"github.com/medicore/portal/pkg/common/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFrom returns the session identity attached by the gate, or nil.
func IdentityFrom(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityContextKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// Authorize decides allow/deny for a session identity against the accepted
// roles. An empty role list means any authenticated identity.
func Authorize(identity *models.Identity, roles ...models.Role) bool {
	if identity == nil {
		return false
	}
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if identity.Role == role {
			return true
		}
	}
	return false
}

// WriteRestricted is the single denial response. Missing sessions and
// wrong-role sessions are indistinguishable to the caller.
func WriteRestricted(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"restricted"}`))
}

// Gate resolves the session cookie into an identity and enforces roles.
type Gate struct {
	service *Service
	cookie  string
}

func NewGate(service *Service, cookieName string) *Gate {
	return &Gate{service: service, cookie: cookieName}
}

// Identity resolves the request's session cookie. A missing cookie, unknown
// token, or expired session all yield nil.
func (g *Gate) Identity(r *http.Request) *models.Identity {
	cookie, err := r.Cookie(g.cookie)
	if err != nil || cookie.Value == "" {
		return nil
	}
	identity, err := g.service.Resolve(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return &identity
}

// Require wraps a handler with the access gate. Denials render the uniform
// restricted response.
func (g *Gate) Require(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := g.Identity(r)
			if !Authorize(identity, roles...) {
				WriteRestricted(w)
				return
			}
			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}

		r.Header.Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)

		logger.Log.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"remote_addr": r.RemoteAddr,
			"request_id":  reqID,
			"duration":    time.Since(start).Milliseconds(),
		}).Info("HTTP request")
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Log.WithField("error", err).Error("Panic recovered")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
