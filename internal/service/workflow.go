package service

import (
	"context"
	"time"

	"task-ledger/internal/interaction"
	"task-ledger/internal/model"
	"task-ledger/internal/repository"
)

// Default wait budgets for the two interactive workflows.
const (
	DefaultConfirmTimeout = 20 * time.Second
	DefaultStatusTimeout  = 60 * time.Second
)

// Prompter asks one question and waits for the answer.
type Prompter interface {
	Ask(ctx context.Context, req interaction.Request, timeout time.Duration) (interaction.Result, error)
}

// TaskFinder looks a task up before a prompt is shown. A nil task means
// there is no such id in the channel.
type TaskFinder interface {
	Get(ctx context.Context, channelID int64, taskID string) (*model.Task, error)
}

type TaskDeleter interface {
	TaskFinder
	Delete(ctx context.Context, channelID int64, taskID string) (repository.DeleteResult, error)
}

type StatusSetter interface {
	TaskFinder
	SetStatus(ctx context.Context, channelID int64, taskID string, status model.Status) (bool, error)
}

// Target names the task a workflow acts on and the user who asked.
type Target struct {
	ChannelID int64
	UserID    int64
	TaskID    string
}
