// Package collaborators wraps the three external black-box interfaces
// spec.md §1 carves out of the core ("out of scope ... specified only at
// their interface to the core"): tokenization, content chunking, and cue
// proposal. Each is backed by an LLM or NLP service the core engine has no
// business calling directly, so every call is routed through a circuit
// breaker and a rate limiter — grounded on the teacher's
// internal/llm/circuit_breaker.go pattern (gobreaker-wrapped provider
// calls) and web/handlers/middleware.go's rate.NewLimiter wrapper,
// generalized here from HTTP middleware to collaborator calls.
package collaborators

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// Tokenizer turns free text into candidate cues (spec.md §1: "a
// tokenize(text) -> [cue] black box"; §4.7 step 1).
type Tokenizer interface {
	Tokenize(ctx context.Context, text string) ([]string, error)
}

// Chunker splits large ingested content into smaller units before each is
// offered to AddMemory — a supplemented feature grounded on
// original_source/src/agent/chunker.rs's file-ingestion chunking, absent
// from spec.md's distilled core but present in the original and a natural
// fit for large-document ingestion.
type Chunker interface {
	Chunk(ctx context.Context, content string) ([]string, error)
}

// Proposer suggests cues or alias rewrites for a piece of content —
// grounded on original_source/src/llm.rs's propose_cues and the
// ProposeAliases job (original_source/src/jobs.rs), both of which defer to
// an LLM provider the core never talks to directly.
type Proposer interface {
	ProposeCues(ctx context.Context, content string, knownCues []string) ([]string, error)
	ProposeAlias(ctx context.Context, cue string, candidates []string) (target string, confidence float64, err error)
}

// ErrCollaboratorUnavailable is returned (wrapped) whenever the circuit
// breaker is open or the rate limiter rejects a call outright.
var ErrCollaboratorUnavailable = fmt.Errorf("collaborators: external service unavailable")

// Guard wraps a single external collaborator call with a circuit breaker
// and a token-bucket rate limiter, so a misbehaving collaborator degrades
// (fails fast) instead of wedging the ingestion path. One Guard is shared
// by all calls to a given collaborator kind for a project.
type Guard struct {
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// GuardConfig configures a Guard's breaker and limiter.
type GuardConfig struct {
	Name                string
	MaxRequestsHalfOpen  uint32
	OpenTimeout          time.Duration
	ConsecutiveFailures  uint32
	RatePerSecond        float64
	Burst                int
}

// DefaultGuardConfig mirrors the teacher's circuit-breaker defaults
// (internal/llm/circuit_breaker.go): trip after 5 consecutive failures,
// stay open 30s, allow 1 half-open probe; throttle to 10 req/s with a
// burst of 20.
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:                name,
		MaxRequestsHalfOpen: 1,
		OpenTimeout:         30 * time.Second,
		ConsecutiveFailures: 5,
		RatePerSecond:       10,
		Burst:               20,
	}
}

// NewGuard constructs a Guard from cfg.
func NewGuard(cfg GuardConfig) *Guard {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequestsHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
	}
	return &Guard{
		breaker: gobreaker.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
	}
}

// Call runs fn through the rate limiter and circuit breaker, returning
// ErrCollaboratorUnavailable (wrapped) if either rejects the call before
// fn ever runs.
func (g *Guard) Call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
	}
	result, err := g.breaker.Execute(fn)
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrCollaboratorUnavailable, err)
		}
		return nil, err
	}
	return result, nil
}

// GuardedTokenizer wraps a Tokenizer with a Guard.
type GuardedTokenizer struct {
	Inner Tokenizer
	Guard *Guard
}

func (g *GuardedTokenizer) Tokenize(ctx context.Context, text string) ([]string, error) {
	out, err := g.Guard.Call(ctx, func() (interface{}, error) {
		return g.Inner.Tokenize(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

// GuardedChunker wraps a Chunker with a Guard.
type GuardedChunker struct {
	Inner Chunker
	Guard *Guard
}

func (g *GuardedChunker) Chunk(ctx context.Context, content string) ([]string, error) {
	out, err := g.Guard.Call(ctx, func() (interface{}, error) {
		return g.Inner.Chunk(ctx, content)
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

// GuardedProposer wraps a Proposer with a Guard.
type GuardedProposer struct {
	Inner Proposer
	Guard *Guard
}

type proposeAliasResult struct {
	target     string
	confidence float64
}

func (g *GuardedProposer) ProposeCues(ctx context.Context, content string, knownCues []string) ([]string, error) {
	out, err := g.Guard.Call(ctx, func() (interface{}, error) {
		return g.Inner.ProposeCues(ctx, content, knownCues)
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}

func (g *GuardedProposer) ProposeAlias(ctx context.Context, cue string, candidates []string) (string, float64, error) {
	out, err := g.Guard.Call(ctx, func() (interface{}, error) {
		target, confidence, err := g.Inner.ProposeAlias(ctx, cue, candidates)
		if err != nil {
			return nil, err
		}
		return proposeAliasResult{target: target, confidence: confidence}, nil
	})
	if err != nil {
		return "", 0, err
	}
	r := out.(proposeAliasResult)
	return r.target, r.confidence, nil
}
