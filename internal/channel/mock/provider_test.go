package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DukeRupert/streamtosite/internal/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_FetchChannel(t *testing.T) {
	p := New(nil, 0)

	info, err := p.FetchChannel(context.Background(), "https://www.youtube.com/@mkbhd")
	require.NoError(t, err)
	assert.Equal(t, "Marques Brownlee", info.Name)
	assert.Equal(t, "UCBJycsmduvYEL83R_U4JriQ", info.ID)

	fetch, _ := p.Calls()
	assert.Equal(t, 1, fetch)
}

func TestProvider_FetchChannelDeterministic(t *testing.T) {
	p := New(nil, 0)

	a, err := p.FetchChannel(context.Background(), "https://youtube.com/@somebody-new")
	require.NoError(t, err)
	b, err := p.FetchChannel(context.Background(), "https://www.youtube.com/@Somebody-New")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Subscribers, b.Subscribers)
	assert.Equal(t, "@somebody-new", a.Handle)
}

func TestProvider_FetchChannelUnsupported(t *testing.T) {
	p := New(nil, 0)

	_, err := p.FetchChannel(context.Background(), "https://example.com/@who")
	assert.ErrorIs(t, err, channel.ErrUnsupportedPlatform)

	_, err = p.FetchChannel(context.Background(), "https://www.youtube.com/")
	assert.ErrorIs(t, err, channel.ErrChannelNotFound)
}

func TestProvider_FetchChannelHonoursCancellation(t *testing.T) {
	p := New(nil, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := p.FetchChannel(ctx, "https://www.youtube.com/@mkbhd")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProvider_VerifyOwnership(t *testing.T) {
	p := New(nil, 0)
	ctx := context.Background()

	err := p.VerifyOwnership(ctx, "UC1", "STS-ABC123")
	assert.ErrorIs(t, err, channel.ErrCodeNotFound)

	p.PublishCode("UC1", "STS-ABC123")
	assert.NoError(t, p.VerifyOwnership(ctx, "UC1", "STS-ABC123"))
	assert.ErrorIs(t, p.VerifyOwnership(ctx, "UC1", "STS-OTHER1"), channel.ErrCodeNotFound)

	p.AlwaysVerify = true
	assert.NoError(t, p.VerifyOwnership(ctx, "UC2", "anything"))

	_, verify := p.Calls()
	assert.Equal(t, 4, verify)
}

func TestProvider_ConfiguredErrors(t *testing.T) {
	p := New(nil, 0)
	boom := errors.New("boom")
	p.FetchError = boom
	p.VerifyError = boom

	_, err := p.FetchChannel(context.Background(), "https://www.youtube.com/@mkbhd")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, p.VerifyOwnership(context.Background(), "UC1", "x"), boom)

	p.Reset()
	fetch, verify := p.Calls()
	assert.Zero(t, fetch)
	assert.Zero(t, verify)
	assert.Nil(t, p.FetchError)
}
