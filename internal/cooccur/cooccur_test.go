package cooccur_test

import (
	"testing"

	"github.com/scrypster/cuemap/internal/cooccur"
	"github.com/stretchr/testify/assert"
)

func TestUpdate_Symmetric(t *testing.T) {
	m := cooccur.New(4)
	m.Update([]string{"a", "b", "c"})

	assert.EqualValues(t, 1, m.Count("a", "b"))
	assert.EqualValues(t, 1, m.Count("b", "a"))
	assert.EqualValues(t, 1, m.Count("a", "c"))
	assert.EqualValues(t, 1, m.Count("c", "a"))
	assert.EqualValues(t, 1, m.Count("b", "c"))
	assert.EqualValues(t, 1, m.Count("c", "b"))
}

func TestUpdate_DiagonalNeverTouched(t *testing.T) {
	m := cooccur.New(4)
	m.Update([]string{"a", "a", "b"})
	assert.EqualValues(t, 0, m.Count("a", "a"))
}

func TestUpdate_Accumulates(t *testing.T) {
	m := cooccur.New(4)
	m.Update([]string{"a", "b"})
	m.Update([]string{"a", "b"})
	assert.EqualValues(t, 2, m.Count("a", "b"))
}

func TestNeighbors_Snapshot(t *testing.T) {
	m := cooccur.New(4)
	m.Update([]string{"a", "b"})
	m.Update([]string{"a", "c"})

	n := m.Neighbors("a")
	assert.EqualValues(t, 1, n["b"])
	assert.EqualValues(t, 1, n["c"])
}

func TestCount_Absent(t *testing.T) {
	m := cooccur.New(4)
	assert.EqualValues(t, 0, m.Count("x", "y"))
}
