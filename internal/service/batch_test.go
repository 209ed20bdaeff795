package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
)

func seedTasks(t *testing.T, svc *service.Service, titles ...string) []domain.TaskID {
	t.Helper()

	ids := make([]domain.TaskID, 0, len(titles))
	for _, title := range titles {
		created, err := svc.Create(context.Background(), service.CreateParams{Title: title, Tags: []string{"base"}})
		require.NoError(t, err)
		ids = append(ids, created.ID)
	}
	return ids
}

func TestBatchSetStatus(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	ids := seedTasks(t, svc, "a", "b", "c")

	n, err := svc.BatchSetStatus(ctx, []domain.TaskID{ids[0], "missing", ids[2]}, domain.TaskStatusDone)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	done, err := svc.List(ctx, service.ListFilter{Status: ptr(domain.TaskStatusDone)})
	require.NoError(t, err)
	assert.Len(t, done, 2)

	_, err = svc.BatchSetStatus(ctx, ids, "paused")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBatchSetPriority(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	ids := seedTasks(t, svc, "a", "b")

	n, err := svc.BatchSetPriority(ctx, ids, domain.TaskPriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := svc.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPriorityUrgent, got.Priority)

	_, err = svc.BatchSetPriority(ctx, ids, "p1")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBatchSetProject(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	ids := seedTasks(t, svc, "a", "b")

	n, err := svc.BatchSetProject(ctx, ids, "garden")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inGarden, err := svc.List(ctx, service.ListFilter{Project: "garden"})
	require.NoError(t, err)
	assert.Len(t, inGarden, 2)
}

func TestBatchAddTags(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	ids := seedTasks(t, svc, "a")

	n, err := svc.BatchAddTags(ctx, ids, []string{"new", "BASE", "new"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := svc.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "new"}, got.Tags)

	_, err = svc.BatchAddTags(ctx, ids, []string{" ", ""})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestBatchDelete(t *testing.T) {
	t.Parallel()

	svc := newService(t)
	ctx := context.Background()
	ids := seedTasks(t, svc, "a", "b", "c")

	n, err := svc.BatchDelete(ctx, []domain.TaskID{ids[0], ids[0], "missing", ids[2]})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := svc.List(ctx, service.ListFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, ids[1], left[0].ID)
}

func TestBatch_StopsOnBackendFailure(t *testing.T) {
	t.Parallel()

	svc := service.New(unavailableRepo{})

	n, err := svc.BatchSetStatus(context.Background(), []domain.TaskID{"1", "2"}, domain.TaskStatusDone)
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Zero(t, n)

	n, err = svc.BatchDelete(context.Background(), []domain.TaskID{"1"})
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.Zero(t, n)
}
