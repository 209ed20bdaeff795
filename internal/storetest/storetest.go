// Package storetest provides a conformance suite for domain.TaskRepository
// implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/vibetodo/internal/domain"
)

// Options adjusts the suite to documented backend differences.
type Options struct {
	// InsertionOrder asserts that ListAll returns tasks in creation order.
	InsertionOrder bool
	// Expect maps a task as written to the value the backend reads back.
	// Nil means lossless.
	Expect func(*domain.Task) *domain.Task
}

// Run exercises the repository contract against a fresh, empty repository
// returned by newRepo for each subtest.
func Run(t *testing.T, newRepo func(t *testing.T) domain.TaskRepository, opts Options) {
	t.Helper()

	expect := opts.Expect
	if expect == nil {
		expect = func(tk *domain.Task) *domain.Task { return tk }
	}

	t.Run("save_then_get_round_trips", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		in := SampleTask("Write report")
		saved, err := repo.Save(ctx, in.Clone())
		require.NoError(t, err)
		require.NotEmpty(t, saved.ID)
		AssertContentEqual(t, expect(in), saved)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, saved.ID, got.ID)
		AssertContentEqual(t, saved, got)
	})

	t.Run("save_with_id_replaces_all_fields", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, SampleTask("Original"))
		require.NoError(t, err)

		update := &domain.Task{
			ID:       saved.ID,
			Title:    "Renamed",
			Status:   domain.TaskStatusDone,
			Priority: domain.TaskPriorityLow,
		}
		updated, err := repo.Save(ctx, update.Clone())
		require.NoError(t, err)
		assert.Equal(t, saved.ID, updated.ID)
		AssertContentEqual(t, expect(update), updated)

		got, err := repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		AssertContentEqual(t, expect(update), got)
	})

	t.Run("tag_order_is_preserved", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		in := domain.NewTask("ordered")
		in.Tags = []string{"zeta", "alpha", "mid"}
		saved, err := repo.Save(ctx, in)
		require.NoError(t, err)

		got, err := repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"zeta", "alpha", "mid"}, got.Tags)

		got.Tags = []string{"mid", "zeta"}
		_, err = repo.Save(ctx, got.Clone())
		require.NoError(t, err)

		got, err = repo.GetByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, []string{"mid", "zeta"}, got.Tags)
	})

	t.Run("save_rejects_blank_title", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Save(context.Background(), domain.NewTask("  "))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("get_missing_returns_nil", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, domain.NewTask("exists"))
		require.NoError(t, err)
		_, err = repo.Delete(ctx, saved.ID)
		require.NoError(t, err)

		for _, id := range []domain.TaskID{saved.ID, "999999", "not-an-id"} {
			got, err := repo.GetByID(ctx, id)
			require.NoError(t, err, id)
			assert.Nil(t, got, id)
		}
	})

	t.Run("delete_is_idempotent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		saved, err := repo.Save(ctx, domain.NewTask("doomed"))
		require.NoError(t, err)

		ok, err := repo.Delete(ctx, saved.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Delete(ctx, saved.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("list_filters_by_status", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		statuses := []domain.TaskStatus{
			domain.TaskStatusTodo, domain.TaskStatusDone, domain.TaskStatusInProgress,
			domain.TaskStatusTodo, domain.TaskStatusDone,
		}
		var ids []domain.TaskID
		for i, s := range statuses {
			tk := domain.NewTask("task " + string(rune('A'+i)))
			tk.Status = s
			saved, err := repo.Save(ctx, tk)
			require.NoError(t, err)
			ids = append(ids, saved.ID)
		}

		all, err := repo.ListAll(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, len(statuses))

		todo := domain.TaskStatusTodo
		filtered, err := repo.ListAll(ctx, &todo)
		require.NoError(t, err)
		require.Len(t, filtered, 2)
		for _, tk := range filtered {
			assert.Equal(t, domain.TaskStatusTodo, tk.Status)
		}

		if opts.InsertionOrder {
			got := make([]domain.TaskID, 0, len(all))
			for _, tk := range all {
				got = append(got, tk.ID)
			}
			assert.Equal(t, ids, got)
			assert.Equal(t, []domain.TaskID{ids[0], ids[3]}, []domain.TaskID{filtered[0].ID, filtered[1].ID})
		}
	})

	t.Run("list_empty", func(t *testing.T) {
		repo := newRepo(t)

		all, err := repo.ListAll(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	if opts.InsertionOrder {
		t.Run("ids_not_reused_after_delete", func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			first, err := repo.Save(ctx, domain.NewTask("first"))
			require.NoError(t, err)
			second, err := repo.Save(ctx, domain.NewTask("second"))
			require.NoError(t, err)
			_, err = repo.Delete(ctx, second.ID)
			require.NoError(t, err)

			third, err := repo.Save(ctx, domain.NewTask("third"))
			require.NoError(t, err)
			assert.NotEqual(t, second.ID, third.ID)
			assert.NotEqual(t, first.ID, third.ID)
		})
	}
}

// SampleTask returns a task with every optional field populated.
func SampleTask(title string) *domain.Task {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	return &domain.Task{
		Title:            title,
		Description:      "quarterly numbers",
		Status:           domain.TaskStatusInProgress,
		Priority:         domain.TaskPriorityHigh,
		DueDate:          &due,
		Tags:             []string{"work", "finance"},
		Project:          "ops",
		TimeSpentMinutes: 45,
	}
}

// AssertContentEqual compares every user-visible field, ignoring id and
// adapter-maintained timestamps.
func AssertContentEqual(t *testing.T, want, got *domain.Task) {
	t.Helper()

	require.NotNil(t, got)
	assert.Equal(t, want.Title, got.Title, "title")
	assert.Equal(t, want.Description, got.Description, "description")
	assert.Equal(t, want.Status, got.Status, "status")
	assert.Equal(t, want.Priority, got.Priority, "priority")
	assert.Equal(t, want.Project, got.Project, "project")
	assert.Equal(t, want.TimeSpentMinutes, got.TimeSpentMinutes, "time spent")
	assert.Equal(t, tagList(want.Tags), tagList(got.Tags), "tags (in insertion order)")
	if want.DueDate == nil {
		assert.Nil(t, got.DueDate, "due date")
	} else if assert.NotNil(t, got.DueDate, "due date") {
		assert.True(t, want.DueDate.Equal(*got.DueDate), "due date: want %s, got %s", want.DueDate, got.DueDate)
	}
}

// tagList treats nil and empty tag lists alike.
func tagList(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}
	return tags
}
