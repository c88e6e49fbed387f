package gate

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/metrics"
)

type contextKey struct{}

// WithResult stores r on the context for handlers behind the middleware.
func WithResult(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the Result stored by the middleware, if any.
func FromContext(ctx context.Context) (Result, bool) {
	r, ok := ctx.Value(contextKey{}).(Result)
	return r, ok
}

// RequireFeature returns middleware that refuses the request with 402
// Payment Required unless the plan includes key. Allowed requests carry the
// evaluated Result on their context.
func (g *Gate) RequireFeature(key domain.FeatureKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := g.Evaluate(r.Context(), key)
			if err != nil {
				g.logger.Error("gate evaluation failed", "feature", key, "error", err)
				writeDenied(w, http.StatusInternalServerError, domain.EINTERNAL, "An internal error occurred. Please try again later.", nil)
				return
			}
			if !res.HasAccess {
				metrics.FeatureGateDenials.WithLabelValues(string(key)).Inc()
				g.logger.Info("feature denied", "feature", key, "plan", res.PlanID, "path", r.URL.Path)
				var up *Upgrade
				if u, ok := UpgradeForFeature(key); ok {
					up = &u
				}
				writeDenied(w, http.StatusPaymentRequired, domain.EPAYMENT, domain.FeatureLocked("gate.require_feature", key).Message, up)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
		})
	}
}

// RequireLimit refuses the request with 402 once the counter for key has
// reached the plan's ceiling.
func (g *Gate) RequireLimit(key domain.LimitKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := g.Evaluate(r.Context())
			if err != nil {
				g.logger.Error("gate evaluation failed", "limit", key, "error", err)
				writeDenied(w, http.StatusInternalServerError, domain.EINTERNAL, "An internal error occurred. Please try again later.", nil)
				return
			}
			if !res.WithinLimit(key) {
				current := res.Usage.Value(key)
				metrics.LimitDenials.WithLabelValues(string(key)).Inc()
				g.logger.Info("limit reached", "limit", key, "plan", res.PlanID, "current", current)
				var up *Upgrade
				if u, ok := UpgradeForLimit(key, current); ok {
					up = &u
				}
				msg := domain.LimitExceeded("gate.require_limit", key, current, res.Limits[key]).Message
				writeDenied(w, http.StatusPaymentRequired, domain.EPAYMENT, msg, up)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithResult(r.Context(), res)))
		})
	}
}

// DeniedResponse is the JSON body of a refused request.
type DeniedResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Upgrade *Upgrade `json:"upgrade,omitempty"`
}

func writeDenied(w http.ResponseWriter, status int, code, message string, up *Upgrade) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(DeniedResponse{Error: message, Code: code, Upgrade: up})
}
