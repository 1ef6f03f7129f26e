package taxonomy_test

import (
	"testing"

	"github.com/scrypster/cuemap/internal/taxonomy"
	"github.com/stretchr/testify/assert"
)

func TestValidateCues_PlainCuesAlwaysAccepted(t *testing.T) {
	report := taxonomy.ValidateCues([]string{"coding", "launch"}, taxonomy.Taxonomy{})
	assert.Equal(t, []string{"coding", "launch"}, report.Accepted)
	assert.Empty(t, report.Rejected)
}

func TestValidateCues_EmptyTaxonomyAllowsAnyStructuredCue(t *testing.T) {
	report := taxonomy.ValidateCues([]string{"topic:coding", "status:active"}, taxonomy.Taxonomy{})
	assert.Equal(t, []string{"topic:coding", "status:active"}, report.Accepted)
	assert.Empty(t, report.Rejected)
}

func TestValidateCues_BadFormatRejected(t *testing.T) {
	report := taxonomy.ValidateCues([]string{"topic:", ":value"}, taxonomy.Taxonomy{})
	assert.Len(t, report.Rejected, 2)
	assert.Equal(t, taxonomy.CodeBadFormat, report.Rejected[0].Code)
	assert.Equal(t, taxonomy.CodeBadFormat, report.Rejected[1].Code)
}

func TestValidateCues_UnknownKeyRejectedWhenAllowedKeysSet(t *testing.T) {
	tax := taxonomy.Taxonomy{AllowedKeys: []string{"topic", "status"}}
	report := taxonomy.ValidateCues([]string{"topic:coding", "owner:alice"}, tax)
	assert.Equal(t, []string{"topic:coding"}, report.Accepted)
	assert.Len(t, report.Rejected, 1)
	assert.Equal(t, taxonomy.CodeUnknownKey, report.Rejected[0].Code)
	assert.Equal(t, "owner:alice", report.Rejected[0].Cue)
}

func TestValidateCues_UnknownValueRejectedAgainstAllowedValues(t *testing.T) {
	tax := taxonomy.Taxonomy{
		AllowedValues: map[string][]string{"status": {"active", "archived"}},
	}
	report := taxonomy.ValidateCues([]string{"status:active", "status:deleted"}, tax)
	assert.Equal(t, []string{"status:active"}, report.Accepted)
	assert.Len(t, report.Rejected, 1)
	assert.Equal(t, taxonomy.CodeUnknownValue, report.Rejected[0].Code)
}

func TestValidateCues_ValuePrefixSatisfiesConstraint(t *testing.T) {
	tax := taxonomy.Taxonomy{
		AllowedValuePrefixes: map[string][]string{"file": {"/repo/"}},
	}
	report := taxonomy.ValidateCues([]string{"file:/repo/main.go", "file:/etc/passwd"}, tax)
	assert.Equal(t, []string{"file:/repo/main.go"}, report.Accepted)
	assert.Len(t, report.Rejected, 1)
	assert.Equal(t, "file:/etc/passwd", report.Rejected[0].Cue)
}

func TestValidateCues_ValuesAndPrefixesCombine(t *testing.T) {
	tax := taxonomy.Taxonomy{
		AllowedValues:        map[string][]string{"status": {"active"}},
		AllowedValuePrefixes: map[string][]string{"status": {"pending_"}},
	}
	report := taxonomy.ValidateCues([]string{"status:active", "status:pending_review", "status:closed"}, tax)
	assert.ElementsMatch(t, []string{"status:active", "status:pending_review"}, report.Accepted)
	assert.Len(t, report.Rejected, 1)
	assert.Equal(t, "status:closed", report.Rejected[0].Cue)
}
