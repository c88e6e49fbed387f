// Package channel looks up channel metadata on video platforms and checks
// that a site owner controls the channel they imported.
package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/DukeRupert/streamtosite/internal/domain"
)

// ChannelProvider fetches public metadata for a channel URL.
type ChannelProvider interface {
	// FetchChannel returns ErrUnsupportedPlatform when the URL does not
	// belong to a platform the provider understands.
	FetchChannel(ctx context.Context, url string) (*domain.ChannelInfo, error)
}

// VerificationProvider proves ownership of a channel.
type VerificationProvider interface {
	// VerifyOwnership returns nil when code is visible on the channel and
	// ErrCodeNotFound when it is not.
	VerifyOwnership(ctx context.Context, channelID, code string) error
}

// Provider is a collaborator that can do both.
type Provider interface {
	ChannelProvider
	VerificationProvider
}

var (
	// ErrUnsupportedPlatform indicates the URL is not from a known platform.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrChannelNotFound indicates the platform has no such channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrCodeNotFound indicates the verification code is not on the channel yet.
	ErrCodeNotFound = errors.New("verification code not found")

	// ErrUnavailable indicates a transient platform failure worth retrying.
	ErrUnavailable = errors.New("channel provider unavailable")
)

// IsRetryable returns true for failures the caller may retry later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrCodeNotFound) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Error wraps a provider failure with the operation and URL involved.
type Error struct {
	Op  string
	URL string
	Err error
}

func (e *Error) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("channel %s %q: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
