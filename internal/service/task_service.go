package service

import (
	"context"
	"errors"
	"strings"

	"task-ledger/internal/model"
	"task-ledger/internal/repository"
)

var ErrTaskNameRequired = errors.New("task name is required")

// TaskInput is the raw text of an add command. Empty strings mean "not given".
type TaskInput struct {
	Name        string
	Description string
	Member      string
	Deadline    string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

// AddTask stores a new task in the channel. A deadline that does not parse
// is dropped instead of failing the command.
func (s *TaskService) AddTask(ctx context.Context, channelID int64, input TaskInput) (*model.Task, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTaskNameRequired
	}
	return s.taskRepo.Add(ctx, channelID, repository.NewTask{
		Name:        name,
		Description: optional(input.Description),
		Member:      optional(input.Member),
		Deadline:    model.ParseDeadline(input.Deadline),
	})
}

func (s *TaskService) ListTasks(ctx context.Context, channelID int64, member *string) ([]model.Task, error) {
	return s.taskRepo.List(ctx, channelID, member)
}

// CountTasksAllChannels counts tasks per channel, limited to one member when given.
func (s *TaskService) CountTasksAllChannels(ctx context.Context, member *string) (map[int64]int64, error) {
	if member != nil {
		return s.taskRepo.CountByMember(ctx, *member)
	}
	return s.taskRepo.CountAll(ctx)
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
