package jobs_test

import (
	"context"

	"github.com/scrypster/cuemap/internal/collaborators"
	"github.com/scrypster/cuemap/internal/normalization"
	"github.com/scrypster/cuemap/internal/project"
	"github.com/scrypster/cuemap/internal/taxonomy"
)

// fakeProvider wraps a project.Store so jobs tests can exercise the real
// project.Context plumbing without a persistence layer.
type fakeProvider struct {
	store     *project.Store
	saveCalls []string
	saveErr   error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{store: project.NewStore()}
}

func (f *fakeProvider) GetProject(_ context.Context, projectID string) (*project.Context, bool) {
	return f.store.Get(projectID)
}

func (f *fakeProvider) SaveProject(_ context.Context, projectID string) error {
	f.saveCalls = append(f.saveCalls, projectID)
	return f.saveErr
}

func (f *fakeProvider) newProject(projectID string) *project.Context {
	ctx := project.New(normalization.Default(), taxonomy.Taxonomy{}, collaborators.DefaultTokenizer{}, 0)
	f.store.Put(projectID, ctx)
	return ctx
}
