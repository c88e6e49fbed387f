package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/storage"
)

// Plan resolves the active plan: the plan override key if it holds a known
// plan, then the user's stored plan, then the free plan. It never fails;
// unreadable values fall through to the next source.
func (s *Store) Plan(ctx context.Context) domain.PlanID {
	data, err := storage.ReadAll(ctx, s.backend, s.keys.Plan)
	if err == nil {
		raw := strings.TrimSpace(string(data))
		// Accept both a bare id and a JSON string.
		var quoted string
		if json.Unmarshal(data, &quoted) == nil {
			raw = quoted
		}
		if id, ok := plan.ParseID(raw); ok {
			return id
		}
		s.logger.Warn("ignoring unknown plan override", "key", s.keys.Plan, "value", raw)
	} else if !storage.IsNotFound(err) {
		s.logger.Warn("failed to read plan override", "key", s.keys.Plan, "error", err)
	}

	if u := s.User(); u.Plan.IsValid() {
		return u.Plan
	}
	return plan.Default
}

// SetPlan switches the user to id immediately. Under BrandingLive the
// stored branding flags are rewritten too, so the persisted state agrees
// with what reads report.
func (s *Store) SetPlan(ctx context.Context, id domain.PlanID) error {
	const op = "store.set_plan"

	if !plan.Exists(id) {
		return domain.Invalid(op, "unknown plan: "+string(id))
	}
	branding := plan.Get(id).BrandingEnabled()

	err := s.update(ctx, func(st *domain.State) error {
		st.User.Plan = id
		if s.policy == BrandingLive {
			for i := range st.Sites {
				st.Sites[i].BrandingEnabled = branding
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// A stale override would shadow the new user plan, so fall back to
	// removing it if it cannot be rewritten.
	if err := storage.WriteAll(ctx, s.backend, s.keys.Plan, []byte(id), "text/plain; charset=utf-8"); err != nil {
		if delErr := s.backend.Delete(ctx, s.keys.Plan); delErr != nil {
			return domain.Internal(err, op, "failed to persist plan")
		}
		s.logger.Warn("plan override not written, removed instead", "error", err)
	}
	s.logger.Info("plan changed", "plan", id)
	return nil
}

// UsageOverride returns server-reported usage if a valid blob is stored.
// Malformed blobs are treated as absent.
func (s *Store) UsageOverride(ctx context.Context) (domain.Usage, bool) {
	data, err := storage.ReadAll(ctx, s.backend, s.keys.Usage)
	if err != nil {
		if !storage.IsNotFound(err) {
			s.logger.Warn("failed to read usage override", "key", s.keys.Usage, "error", err)
		}
		return domain.Usage{}, false
	}
	var u domain.Usage
	if err := json.Unmarshal(data, &u); err != nil {
		s.logger.Warn("ignoring malformed usage override", "key", s.keys.Usage, "error", err)
		return domain.Usage{}, false
	}
	if u.PostsThisPeriod < 0 || u.SitesCreated < 0 {
		s.logger.Warn("ignoring negative usage override", "key", s.keys.Usage)
		return domain.Usage{}, false
	}
	return u, true
}

// SetUsageOverride stores server-reported usage.
func (s *Store) SetUsageOverride(ctx context.Context, u domain.Usage) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return storage.WriteAll(ctx, s.backend, s.keys.Usage, data, "application/json")
}

// ClearUsageOverride removes any stored usage override.
func (s *Store) ClearUsageOverride(ctx context.Context) error {
	return s.backend.Delete(ctx, s.keys.Usage)
}

// SetStripeCustomerID records the billing customer for the workspace owner.
func (s *Store) SetStripeCustomerID(ctx context.Context, customerID string) error {
	err := s.update(ctx, func(st *domain.State) error {
		if st.User.StripeCustomerID == customerID {
			return errNoChange
		}
		st.User.StripeCustomerID = customerID
		return nil
	})
	if err == errNoChange {
		return nil
	}
	return err
}
