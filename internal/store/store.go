// Package store holds the application state (user, sites, posts) and
// persists it to a storage backend after every mutation.
//
// A Store is an explicit instance: create one with New, call Load before
// use and Reset to tear it down. Mutations are serialized by a mutex, so
// no two of them interleave and readers always see a consistent state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
	"github.com/DukeRupert/streamtosite/internal/plan"
	"github.com/DukeRupert/streamtosite/internal/storage"
)

// BrandingPolicy decides when a site's branding flag is computed.
type BrandingPolicy string

const (
	// BrandingFreeze captures the flag from the owner's plan when the site
	// is created and never changes it.
	BrandingFreeze BrandingPolicy = "freeze"

	// BrandingLive derives the flag from the active plan whenever sites are
	// read, so it follows plan changes made anywhere.
	BrandingLive BrandingPolicy = "live"
)

// ParseBrandingPolicy converts s to a policy, defaulting to BrandingFreeze.
func ParseBrandingPolicy(s string) (BrandingPolicy, error) {
	switch BrandingPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BrandingFreeze:
		return BrandingFreeze, nil
	case BrandingLive:
		return BrandingLive, nil
	}
	return "", fmt.Errorf("unknown branding policy %q", s)
}

// Options configures a Store.
type Options struct {
	Keys           storage.Keys
	BrandingPolicy BrandingPolicy

	// DefaultUser seeds a fresh workspace. Zero fields are filled in.
	DefaultUser domain.User

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Store is the application state store.
type Store struct {
	mu      sync.RWMutex
	backend storage.Storage
	keys    storage.Keys
	policy  BrandingPolicy
	seed    domain.User
	now     func() time.Time
	logger  *slog.Logger

	state  domain.State
	loaded bool
}

// New creates a store backed by backend. Call Load before using it.
func New(backend storage.Storage, opts Options, logger *slog.Logger) *Store {
	if opts.Keys == (storage.Keys{}) {
		opts.Keys = storage.NewKeys("")
	}
	if opts.BrandingPolicy == "" {
		opts.BrandingPolicy = BrandingFreeze
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		backend: backend,
		keys:    opts.Keys,
		policy:  opts.BrandingPolicy,
		seed:    opts.DefaultUser,
		now:     opts.Now,
		logger:  logger,
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

// Load reads persisted state. A missing state blob seeds a default user on
// the free plan; a malformed one is set aside and replaced with defaults.
// Only backend failures are returned as errors.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := storage.ReadAll(ctx, s.backend, s.keys.State)
	switch {
	case storage.IsNotFound(err):
		s.state = s.defaultState()
		s.loaded = true
		s.logger.Info("initialized new workspace", "user_id", s.state.User.ID)
		return s.persistLocked(ctx, s.state)
	case err != nil:
		return fmt.Errorf("load state: %w", err)
	}

	var st domain.State
	if err := json.Unmarshal(data, &st); err != nil || st.User.ID == uuid.Nil {
		s.logger.Warn("persisted state is corrupt, starting from defaults",
			"key", s.keys.State,
			"error", err,
		)
		backupKey := s.keys.State + ".corrupt"
		if err := storage.WriteAll(ctx, s.backend, backupKey, data, "application/octet-stream"); err != nil {
			s.logger.Warn("failed to back up corrupt state", "key", backupKey, "error", err)
		}
		s.state = s.defaultState()
		s.loaded = true
		return s.persistLocked(ctx, s.state)
	}

	normalize(&st)
	s.state = st
	s.loaded = true
	s.logger.Debug("loaded state", "sites", len(st.Sites), "posts", len(st.Posts))
	return nil
}

// Reset deletes all persisted state and clears the in-memory copy. The
// store must be loaded again before further use.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.keys.All() {
		if err := s.backend.Delete(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	s.state = domain.State{}
	s.loaded = false
	return nil
}

func (s *Store) defaultState() domain.State {
	u := s.seed
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Name == "" {
		u.Name = "Creator"
	}
	if u.Email == "" {
		u.Email = "creator@example.com"
	}
	if !u.Plan.IsValid() {
		u.Plan = plan.Default
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.timestamp()
	}
	return domain.State{User: u, Sites: []domain.Site{}, Posts: []domain.Post{}}
}

// normalize repairs fields a hand-edited or older state blob may lack.
func normalize(st *domain.State) {
	if !st.User.Plan.IsValid() {
		st.User.Plan = plan.Default
	}
	if st.Sites == nil {
		st.Sites = []domain.Site{}
	}
	if st.Posts == nil {
		st.Posts = []domain.Post{}
	}
	for i := range st.Sites {
		if st.Sites[i].Sources == nil {
			st.Sites[i].Sources = []domain.Source{}
		}
		if !st.Sites[i].Theme.IsValid() {
			st.Sites[i].Theme = domain.DefaultTheme
		}
	}
}

// =============================================================================
// Mutation plumbing
// =============================================================================

// ErrNotLoaded is returned by mutations on a store that was never loaded.
var ErrNotLoaded = errors.New("store not loaded")

// errNoChange aborts an update without persisting anything.
var errNoChange = errors.New("no change")

// update re-reads the persisted state, applies fn to it, persists the result
// and only then makes it current. Other processes sharing the backend (the
// stsctl CLI) may have written since Load, so fn always sees the latest
// state. If fn or persistence fails nothing is written.
func (s *Store) update(ctx context.Context, fn func(st *domain.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return ErrNotLoaded
	}
	if err := s.refreshLocked(ctx); err != nil {
		return err
	}
	next := cloneState(s.state)
	if err := fn(&next); err != nil {
		return err
	}
	if err := s.persistLocked(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// refreshLocked replaces the in-memory state with the persisted one. A
// missing or unreadable blob keeps the in-memory copy, which the next
// persist writes back.
func (s *Store) refreshLocked(ctx context.Context) error {
	data, err := storage.ReadAll(ctx, s.backend, s.keys.State)
	switch {
	case storage.IsNotFound(err):
		return nil
	case err != nil:
		return fmt.Errorf("refresh state: %w", err)
	}

	var st domain.State
	if err := json.Unmarshal(data, &st); err != nil || st.User.ID == uuid.Nil {
		s.logger.Warn("persisted state is unreadable, keeping in-memory copy",
			"key", s.keys.State,
			"error", err,
		)
		return nil
	}
	normalize(&st)
	s.state = st
	return nil
}

func (s *Store) persistLocked(ctx context.Context, st domain.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := storage.WriteAll(ctx, s.backend, s.keys.State, data, "application/json"); err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	return nil
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

func cloneState(st domain.State) domain.State {
	out := domain.State{
		User:  st.User,
		Sites: make([]domain.Site, len(st.Sites)),
		Posts: make([]domain.Post, len(st.Posts)),
	}
	for i, site := range st.Sites {
		out.Sites[i] = cloneSite(site)
	}
	copy(out.Posts, st.Posts)
	return out
}

func cloneSite(site domain.Site) domain.Site {
	sources := make([]domain.Source, len(site.Sources))
	copy(sources, site.Sources)
	site.Sources = sources
	return site
}

// =============================================================================
// Reads
// =============================================================================

// Snapshot returns a deep copy of the durable state.
func (s *Store) Snapshot() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// User returns the workspace owner.
func (s *Store) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.User
}

// BrandingPolicy returns the configured policy.
func (s *Store) BrandingPolicy() BrandingPolicy {
	return s.policy
}
