package normalization_test

import (
	"testing"

	"github.com/scrypster/cuemap/internal/normalization"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeCue_TrimAndLowercase(t *testing.T) {
	got, trace := normalization.NormalizeCue("  Topic:Coding  ", normalization.Default())
	assert.Equal(t, "topic:coding", got)
	assert.Equal(t, "  Topic:Coding  ", trace.Raw)
	assert.Empty(t, trace.AppliedRules)
}

func TestNormalizeCue_NoTrimNoLowercaseWhenDisabled(t *testing.T) {
	cfg := normalization.Config{Trim: false, Lowercase: false}
	got, _ := normalization.NormalizeCue("  Topic:Coding  ", cfg)
	assert.Equal(t, "  Topic:Coding  ", got)
}

func TestNormalizeCue_RewriteRuleRecordedOnlyWhenItChangesOutput(t *testing.T) {
	cfg := normalization.Default()
	cfg.RewriteRules = []normalization.RewriteRule{
		{Name: "collapse-dashes", Pattern: `-+`, Replace: "-"},
		{Name: "no-op", Pattern: `zzz`, Replace: "zzz"},
	}

	got, trace := normalization.NormalizeCue("topic:multi---dash", cfg)
	assert.Equal(t, "topic:multi-dash", got)
	assert.Equal(t, []string{"collapse-dashes"}, trace.AppliedRules)
}

func TestNormalizeCue_InvalidPatternSkippedNotFatal(t *testing.T) {
	cfg := normalization.Default()
	cfg.RewriteRules = []normalization.RewriteRule{
		{Name: "broken", Pattern: `(unclosed`, Replace: "x"},
	}

	got, trace := normalization.NormalizeCue("Topic:Coding", cfg)
	assert.Equal(t, "topic:coding", got)
	assert.Empty(t, trace.AppliedRules)
}

func TestNormalizeCue_RulesAppliedInOrder(t *testing.T) {
	cfg := normalization.Default()
	cfg.RewriteRules = []normalization.RewriteRule{
		{Name: "a-to-b", Pattern: `a`, Replace: "b"},
		{Name: "b-to-c", Pattern: `b`, Replace: "c"},
	}

	got, trace := normalization.NormalizeCue("aaa", cfg)
	assert.Equal(t, "ccc", got)
	assert.Equal(t, []string{"a-to-b", "b-to-c"}, trace.AppliedRules)
}
