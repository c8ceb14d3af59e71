package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"task-ledger/internal/model"
)

// NewTask carries the caller-supplied fields of a task. The name is assumed
// to be validated already.
type NewTask struct {
	Name        string
	Description *string
	Member      *string
	Deadline    *time.Time
}

// DeleteResult describes a delete: whether a row went away and whether the
// channel relation went with it.
type DeleteResult struct {
	Deleted         bool
	RelationDropped bool
}

// TaskRepository handles CRUD for tasks inside channel relations.
type TaskRepository struct {
	db        *gorm.DB
	relations *RelationRegistry
}

func NewTaskRepository(db *gorm.DB, relations *RelationRegistry) *TaskRepository {
	return &TaskRepository{db: db, relations: relations}
}

func (r *TaskRepository) table(ctx context.Context, channelID int64) *gorm.DB {
	return r.db.WithContext(ctx).Table(RelationName(channelID))
}

// Add inserts a task with status InProgress and returns it with its new id.
// A missing relation is created and the insert retried once.
func (r *TaskRepository) Add(ctx context.Context, channelID int64, in NewTask) (*model.Task, error) {
	task := model.Task{
		ID:          uuid.NewString(),
		TaskName:    in.Name,
		Description: in.Description,
		Member:      in.Member,
		Deadline:    normalizeDate(in.Deadline),
		Status:      model.StatusInProgress,
	}

	err := r.table(ctx, channelID).Create(&task).Error
	if err != nil && isMissingRelation(err) {
		if err := r.relations.Ensure(ctx, channelID); err != nil {
			return nil, err
		}
		err = r.table(ctx, channelID).Create(&task).Error
	}
	if err != nil {
		return nil, fmt.Errorf("create task: %w", classify(err))
	}
	return &task, nil
}

// List returns the channel's tasks, optionally only those assigned to member.
// A channel without a relation has no tasks.
func (r *TaskRepository) List(ctx context.Context, channelID int64, member *string) ([]model.Task, error) {
	q := r.table(ctx, channelID)
	if member != nil {
		q = q.Where("member = ?", *member)
	}
	var tasks []model.Task
	if err := q.Find(&tasks).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list tasks: %w", classify(err))
	}
	return tasks, nil
}

// Get returns one task, or nil when it does not exist.
func (r *TaskRepository) Get(ctx context.Context, channelID int64, taskID string) (*model.Task, error) {
	var tasks []model.Task
	if err := r.table(ctx, channelID).Where("id = ?", taskID).Limit(1).Find(&tasks).Error; err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task: %w", classify(err))
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

// CountAll counts tasks in every channel relation.
func (r *TaskRepository) CountAll(ctx context.Context) (map[int64]int64, error) {
	return r.count(ctx, nil)
}

// CountByMember counts, per channel, the tasks assigned to member.
func (r *TaskRepository) CountByMember(ctx context.Context, member string) (map[int64]int64, error) {
	return r.count(ctx, &member)
}

func (r *TaskRepository) count(ctx context.Context, member *string) (map[int64]int64, error) {
	channels, err := r.relations.Channels(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]int64, len(channels))
	for _, channelID := range channels {
		q := r.table(ctx, channelID)
		if member != nil {
			q = q.Where("member = ?", *member)
		}
		var n int64
		if err := q.Count(&n).Error; err != nil {
			if isMissingRelation(err) {
				// Dropped between listing and counting.
				out[channelID] = 0
				continue
			}
			return nil, fmt.Errorf("count tasks: %w", classify(err))
		}
		out[channelID] = n
	}
	return out, nil
}

// Delete removes one task. Deleting the last task drops the relation.
func (r *TaskRepository) Delete(ctx context.Context, channelID int64, taskID string) (DeleteResult, error) {
	res := r.table(ctx, channelID).Where("id = ?", taskID).Delete(&model.Task{})
	if res.Error != nil {
		if isMissingRelation(res.Error) {
			return DeleteResult{}, nil
		}
		return DeleteResult{}, fmt.Errorf("delete task: %w", classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return DeleteResult{}, nil
	}

	dropped, err := r.relations.DropIfEmpty(ctx, channelID)
	if err != nil {
		// The row is gone; an empty relation left behind is harmless.
		r.relations.log.Warn("drop empty relation", "channel_id", channelID, "error", err)
		return DeleteResult{Deleted: true}, nil
	}
	return DeleteResult{Deleted: true, RelationDropped: dropped}, nil
}

// SetStatus changes only the status column. It reports whether a row matched.
func (r *TaskRepository) SetStatus(ctx context.Context, channelID int64, taskID string, status model.Status) (bool, error) {
	res := r.table(ctx, channelID).Where("id = ?", taskID).Update("status", status)
	if res.Error != nil {
		if isMissingRelation(res.Error) {
			return false, nil
		}
		return false, fmt.Errorf("set status: %w", classify(res.Error))
	}
	return res.RowsAffected > 0, nil
}

func normalizeDate(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	y, m, day := d.Date()
	out := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &out
}
