package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Post Status
// =============================================================================

// PostStatus is the lifecycle state of a post.
type PostStatus string

const (
	// PostStatusDraft is the initial state. Drafts are editable and private.
	PostStatusDraft PostStatus = "draft"

	// PostStatusPublished is terminal. There is no way back to draft.
	PostStatusPublished PostStatus = "published"
)

func (s PostStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s PostStatus) IsValid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// CanTransitionTo reports whether a post may move from s to target.
func (s PostStatus) CanTransitionTo(target PostStatus) bool {
	return s == PostStatusDraft && target == PostStatusPublished
}

// =============================================================================
// Post
// =============================================================================

// Post is a blog post generated from, or written about, a video.
type Post struct {
	ID             uuid.UUID  `json:"id"`
	SiteID         uuid.UUID  `json:"siteId"`
	Title          string     `json:"title"`
	Excerpt        string     `json:"excerpt"`
	Content        string     `json:"content"`
	Platform       Platform   `json:"platform"`
	SourceVideoURL string     `json:"sourceVideoUrl,omitempty"`
	Status         PostStatus `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	PublishedAt    *time.Time `json:"publishedAt,omitempty"`
}

// IsPublished reports whether the post is live.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Publish moves the post to published, stamping PublishedAt. Publishing an
// already-published post is a no-op.
func (p *Post) Publish(now time.Time) error {
	if p.Status == PostStatusPublished {
		return nil
	}
	if !p.Status.CanTransitionTo(PostStatusPublished) {
		return fmt.Errorf("cannot transition post from %s to %s", p.Status, PostStatusPublished)
	}
	p.Status = PostStatusPublished
	p.PublishedAt = &now
	p.UpdatedAt = now
	return nil
}

// CreatePostParams contains the fields for a new draft.
type CreatePostParams struct {
	SiteID         uuid.UUID
	Title          string
	Excerpt        string
	Content        string
	Platform       Platform
	SourceVideoURL string
}

// UpdatePostParams carries optional edits; nil fields are left unchanged.
type UpdatePostParams struct {
	Title   *string
	Excerpt *string
	Content *string
}
