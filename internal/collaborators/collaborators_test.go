package collaborators_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scrypster/cuemap/internal/collaborators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingTokenizer struct{ calls int }

func (f *failingTokenizer) Tokenize(_ context.Context, _ string) ([]string, error) {
	f.calls++
	return nil, errors.New("boom")
}

type okTokenizer struct{}

func (okTokenizer) Tokenize(_ context.Context, text string) ([]string, error) {
	return []string{text}, nil
}

func TestGuard_TripsAfterConsecutiveFailures(t *testing.T) {
	inner := &failingTokenizer{}
	cfg := collaborators.DefaultGuardConfig("test-tokenizer")
	cfg.ConsecutiveFailures = 2
	cfg.RatePerSecond = 1000
	cfg.Burst = 1000
	cfg.OpenTimeout = time.Minute
	guarded := &collaborators.GuardedTokenizer{Inner: inner, Guard: collaborators.NewGuard(cfg)}

	_, err := guarded.Tokenize(context.Background(), "x")
	require.Error(t, err)
	_, err = guarded.Tokenize(context.Background(), "x")
	require.Error(t, err)

	_, err = guarded.Tokenize(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, collaborators.ErrCollaboratorUnavailable)
	assert.Equal(t, 2, inner.calls, "breaker should short-circuit the third call without reaching Inner")
}

func TestGuard_RateLimiterRejectsUnderContextDeadline(t *testing.T) {
	cfg := collaborators.DefaultGuardConfig("test-tokenizer-rl")
	cfg.RatePerSecond = 0.001
	cfg.Burst = 1
	guarded := &collaborators.GuardedTokenizer{Inner: okTokenizer{}, Guard: collaborators.NewGuard(cfg)}

	ctx := context.Background()
	_, err := guarded.Tokenize(ctx, "first")
	require.NoError(t, err, "burst of 1 allows the first call through immediately")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = guarded.Tokenize(ctx2, "second")
	require.Error(t, err)
}

func TestGuardedTokenizer_PassesThroughOnSuccess(t *testing.T) {
	guarded := &collaborators.GuardedTokenizer{Inner: okTokenizer{}, Guard: collaborators.NewGuard(collaborators.DefaultGuardConfig("pass"))}
	out, err := guarded.Tokenize(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, out)
}

func TestDefaultTokenizer_FiltersStopwordsAndShortAndHashTokens(t *testing.T) {
	tok := collaborators.DefaultTokenizer{}
	out, err := tok.Tokenize(context.Background(), "The Quick Brown Fox jumps over a9f3e7c1d0 id")
	require.NoError(t, err)
	assert.Contains(t, out, "quick")
	assert.Contains(t, out, "brown")
	assert.Contains(t, out, "fox")
	assert.Contains(t, out, "jumps")
	assert.NotContains(t, out, "the")
	assert.NotContains(t, out, "over")
	assert.NotContains(t, out, "a")
	assert.NotContains(t, out, "id")
	assert.NotContains(t, out, "a9f3e7c1d0")
}

func TestDefaultTokenizer_EmptyTextYieldsNoTokens(t *testing.T) {
	tok := collaborators.DefaultTokenizer{}
	out, err := tok.Tokenize(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestNormalizeText_CollapsesPunctuationToSpaces(t *testing.T) {
	got := collaborators.NormalizeText("Hello,   World!!  --foo_bar")
	assert.Equal(t, "hello world foo bar", got)
}
