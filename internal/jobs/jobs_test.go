package jobs_test

import (
	"testing"

	"github.com/scrypster/cuemap/internal/jobs"
	"github.com/stretchr/testify/assert"
)

func TestIsLexiconTrainable(t *testing.T) {
	assert.True(t, jobs.IsLexiconTrainable("golang"))
	assert.True(t, jobs.IsLexiconTrainable("topic:coding"))
	assert.False(t, jobs.IsLexiconTrainable("path:/repo/main.go"))
	assert.False(t, jobs.IsLexiconTrainable("PATH:/repo/main.go"))
	assert.False(t, jobs.IsLexiconTrainable("id:abc123"))
	assert.False(t, jobs.IsLexiconTrainable("memory_id:abc123"))
	assert.False(t, jobs.IsLexiconTrainable("file:foo.txt"))
	assert.False(t, jobs.IsLexiconTrainable("alias_id:xyz"))
	assert.False(t, jobs.IsLexiconTrainable("source:agent"))
}
