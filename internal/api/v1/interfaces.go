package v1

import (
	"context"
	"io"

	"github.com/gosuda/vibetodo/internal/domain"
	"github.com/gosuda/vibetodo/internal/service"
	"github.com/gosuda/vibetodo/internal/transfer"
)

// TaskService abstracts task operations for handler testing.
// *service.Service satisfies this interface.
type TaskService interface {
	Create(ctx context.Context, p service.CreateParams) (*domain.Task, error)
	Get(ctx context.Context, id domain.TaskID) (*domain.Task, error)
	List(ctx context.Context, f service.ListFilter) ([]*domain.Task, error)
	Update(ctx context.Context, id domain.TaskID, p service.UpdateParams) (*domain.Task, error)
	SetStatus(ctx context.Context, id domain.TaskID, status domain.TaskStatus) (*domain.Task, error)
	AddTime(ctx context.Context, id domain.TaskID, minutes int) (*domain.Task, error)
	Delete(ctx context.Context, id domain.TaskID) (bool, error)
	Statistics(ctx context.Context) (service.Stats, error)
	Backend() string
}

// Exporter is satisfied by *transfer.Exporter.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, format transfer.Format, ids []domain.TaskID) (int, error)
}

// Importer is satisfied by *transfer.Importer.
type Importer interface {
	Import(ctx context.Context, r io.Reader, format transfer.Format, strategy transfer.Strategy) (*transfer.Report, error)
}
