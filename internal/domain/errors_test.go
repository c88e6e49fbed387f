package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorAccessors(t *testing.T) {
	base := errors.New("disk full")
	err := fmt.Errorf("outer: %w", Wrap(base, ECONFLICT, "SiteService.Create", "Taken."))

	assert.Equal(t, ECONFLICT, ErrorCode(err))
	assert.Equal(t, "Taken.", ErrorMessage(err))
	assert.Equal(t, "SiteService.Create", ErrorOp(err))
	assert.ErrorIs(t, err, base)

	assert.Equal(t, EINTERNAL, ErrorCode(base))
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, "An internal error occurred. Please try again later.",
		ErrorMessage(Internal(base, "op", "secret detail")))
}

func TestPlanDenials(t *testing.T) {
	limit := LimitExceeded("quota.check_posts", LimitMaxPostsPerMonth, 10, 10)
	assert.Equal(t, EPAYMENT, ErrorCode(limit))
	assert.Equal(t, "Your plan allows 10 posts per month (currently 10). Upgrade to continue.", limit.Message)

	d, ok := ErrorDenial(fmt.Errorf("wrapped: %w", limit))
	require.True(t, ok)
	assert.Equal(t, LimitMaxPostsPerMonth, d.Limit)
	assert.Equal(t, int64(10), d.Current)
	assert.Empty(t, d.Feature)

	locked := FeatureLocked("PostService.Draft", FeatureAICopilot)
	d, ok = ErrorDenial(locked)
	require.True(t, ok)
	assert.Equal(t, FeatureAICopilot, d.Feature)

	_, ok = ErrorDenial(Invalid("op", "bad"))
	assert.False(t, ok)
}

func TestValidationError(t *testing.T) {
	ve := NewValidationError("PostService.Create", "title", "Title is required")
	ve = AddFieldError(ve, "siteId", "Site is required")

	assert.Equal(t, map[string]string{"title": "Title is required", "siteId": "Site is required"}, ve.Fields)
	assert.Equal(t, EINTERNAL, ErrorCode(ve), "validation errors are not *Error")
}
