package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// AddPost creates a draft on a site and bumps the site's post count. It
// returns nil, nil if the site does not exist.
func (s *Store) AddPost(ctx context.Context, params domain.CreatePostParams) (*domain.Post, error) {
	now := s.timestamp()
	var created *domain.Post

	err := s.update(ctx, func(st *domain.State) error {
		idx := -1
		for i := range st.Sites {
			if st.Sites[i].ID == params.SiteID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return errNoChange
		}

		platform := params.Platform
		if platform == "" {
			if src := st.Sites[idx].PrimarySource(); src != nil {
				platform = src.Platform
			} else {
				platform = domain.PlatformUnknown
			}
		}

		p := domain.Post{
			ID:             uuid.New(),
			SiteID:         params.SiteID,
			Title:          params.Title,
			Excerpt:        params.Excerpt,
			Content:        params.Content,
			Platform:       platform,
			SourceVideoURL: params.SourceVideoURL,
			Status:         domain.PostStatusDraft,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		st.Posts = append(st.Posts, p)
		st.Sites[idx].Stats.PostCount++
		created = &p
		return nil
	})
	if err == errNoChange {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.logger.Debug("post created", "post_id", created.ID, "site_id", created.SiteID)
	return created, nil
}

// UpdatePost edits a post's text. Status is never changed here. Returns
// nil, nil if the post does not exist.
func (s *Store) UpdatePost(ctx context.Context, id uuid.UUID, params domain.UpdatePostParams) (*domain.Post, error) {
	now := s.timestamp()
	return s.updatePost(ctx, id, func(p *domain.Post) error {
		if params.Title != nil {
			p.Title = *params.Title
		}
		if params.Excerpt != nil {
			p.Excerpt = *params.Excerpt
		}
		if params.Content != nil {
			p.Content = *params.Content
		}
		p.UpdatedAt = now
		return nil
	})
}

// PublishPost moves a draft to published. Publishing is one-way and
// publishing twice keeps the first publish time. Returns nil, nil if the
// post does not exist.
func (s *Store) PublishPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	now := s.timestamp()
	p, err := s.updatePost(ctx, id, func(p *domain.Post) error {
		if p.IsPublished() {
			return errNoChange
		}
		return p.Publish(now)
	})
	if err == nil && p == nil {
		// Either missing or already published.
		if existing, ok := s.Post(id); ok {
			return existing, nil
		}
	}
	if err == nil && p != nil {
		s.logger.Info("post published", "post_id", p.ID, "site_id", p.SiteID)
	}
	return p, err
}

func (s *Store) updatePost(ctx context.Context, id uuid.UUID, fn func(p *domain.Post) error) (*domain.Post, error) {
	var updated *domain.Post
	err := s.update(ctx, func(st *domain.State) error {
		for i := range st.Posts {
			if st.Posts[i].ID == id {
				if err := fn(&st.Posts[i]); err != nil {
					return err
				}
				p := st.Posts[i]
				updated = &p
				return nil
			}
		}
		return errNoChange
	})
	if err == errNoChange {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Posts returns posts for a site, or every post when siteID is uuid.Nil.
func (s *Store) Posts(siteID uuid.UUID) []domain.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Post, 0, len(s.state.Posts))
	for _, p := range s.state.Posts {
		if siteID == uuid.Nil || p.SiteID == siteID {
			out = append(out, p)
		}
	}
	return out
}

// Post returns a copy of the post with the given id.
func (s *Store) Post(id uuid.UUID) (*domain.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.state.Posts {
		if p.ID == id {
			out := p
			return &out, true
		}
	}
	return nil, false
}
