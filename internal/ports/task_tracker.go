package ports

import (
	"context"

	"github.com/bnema/taskdump/internal/domain"
)

type TaskTracker interface {
	CreateTask(ctx context.Context, input domain.TrackerTaskInput) (domain.TrackerTask, error)
	UpdateTask(ctx context.Context, ref string, update domain.TrackerTaskUpdate) (domain.TrackerTask, error)
}
