package badger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/repository"
)

func newTestRepo(t *testing.T) *JobRepo {
	t.Helper()
	db, err := Open("", true, nil)
	require.NoError(t, err)
	repo, err := NewJobRepo(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Close()
		_ = db.Close()
	})
	return repo
}

func TestJobRepo_InsertAndFetch(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	jobs := []*repository.Job{
		{Title: "Python Developer", Embedding: []float32{1, 0}},
		{Title: "Java Developer"},
		{Title: "Python Intern", Embedding: []float32{0, 1}},
	}
	require.NoError(t, repo.Insert(ctx, jobs))
	for _, job := range jobs {
		assert.NotEqual(t, uuid.Nil, job.ID)
	}

	withVectors, err := repo.FetchWithVectors(ctx)
	require.NoError(t, err)
	require.Len(t, withVectors, 2)
	assert.Equal(t, "Python Developer", withVectors[0].Title)
	assert.Equal(t, "Python Intern", withVectors[1].Title)

	total, vectors, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, vectors)
}

func TestJobRepo_GetByIDsSkipsMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &repository.Job{Title: "Go Developer"}
	require.NoError(t, repo.Insert(ctx, []*repository.Job{job}))

	missing := uuid.New()
	found, err := repo.GetByIDs(ctx, []uuid.UUID{job.ID, missing})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Go Developer", found[job.ID].Title)
	assert.NotContains(t, found, missing)
}

func TestJobRepo_UpdateEmbedding(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	job := &repository.Job{Title: "Data Engineer"}
	require.NoError(t, repo.Insert(ctx, []*repository.Job{job}))

	require.NoError(t, repo.UpdateEmbedding(ctx, job.ID, []float32{0.6, 0.8, 0}))

	dims, err := repo.VectorDimensions(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{3: 1}, dims)

	err = repo.UpdateEmbedding(ctx, uuid.New(), []float32{1})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestJobRepo_ReplaceAllAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, []*repository.Job{{Title: "old"}}))
	require.NoError(t, repo.ReplaceAll(ctx, []*repository.Job{
		{Title: "a"}, {Title: "b"}, {Title: "c"},
	}))

	page, err := repo.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].Title)
	assert.Equal(t, "c", page[1].Title)

	total, _, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, repo.Ping(ctx))
}
