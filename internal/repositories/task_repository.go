package repository

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"ops-task-service.com/ops-task-service/internal/constants"
	apperrors "ops-task-service.com/ops-task-service/internal/errors"
	model "ops-task-service.com/ops-task-service/internal/models"
)

const MaxListLimit = 100

type TaskRepository struct {
	db    *gorm.DB
	clock *monotonicClock
}

// Transition is a guarded status change. The update only applies while the
// row is still in From (and approved, when RequireApproved is set).
type Transition struct {
	ID              string
	From            constants.TaskStatus
	To              constants.TaskStatus
	Fields          map[string]any
	RequireApproved bool
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db, clock: &monotonicClock{}}
}

func (r *TaskRepository) Insert(ctx context.Context, draft model.TaskDraft) (*model.Task, error) {
	name := strings.TrimSpace(draft.Name)
	if name == "" {
		return nil, apperrors.ErrNameRequired
	}
	taskType := strings.TrimSpace(draft.Type)
	if taskType == "" {
		return nil, apperrors.ErrTypeRequired
	}

	priority := constants.DefaultPriority
	if draft.Priority != nil {
		priority = *draft.Priority
	}
	triggeredBy := draft.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = constants.TriggeredByAPI
	}

	now := r.clock.Now()
	task := &model.Task{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        taskType,
		Status:      constants.StatusPending,
		Priority:    priority,
		Config:      datatypes.JSONMap(draft.Config),
		Approved:    draft.Approved,
		TriggeredBy: triggeredBy,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.db.WithContext(ctx).Create(task).Error; err != nil {
		return nil, err
	}

	return task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.ErrTaskNotFound, "task %s not found", id)
		}
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	limit, err := clampLimit(filter.Limit)
	if err != nil {
		return nil, err
	}

	query := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.TriggeredBy != "" {
		query = query.Where("triggered_by = ?", filter.TriggeredBy)
	}

	var tasks []model.Task
	err = query.Order("created_at desc").Order("id desc").Limit(limit).Find(&tasks).Error
	return tasks, err
}

// ListPending returns pending tasks, highest priority first and oldest first
// within a priority.
func (r *TaskRepository) ListPending(ctx context.Context, limit int) ([]model.Task, error) {
	limit, err := clampLimit(limit)
	if err != nil {
		return nil, err
	}

	var tasks []model.Task
	query := r.db.WithContext(ctx).
		Where("status = ?", constants.StatusPending).
		Order("priority desc").
		Order("created_at asc").
		Order("id asc").
		Limit(limit)

	if err := query.Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

// UpdateStatus applies t as a single compare-and-set statement. Concurrent
// callers racing on the same edge see exactly one success; the rest get
// ErrConflict.
func (r *TaskRepository) UpdateStatus(ctx context.Context, t Transition) (*model.Task, error) {
	updates := map[string]any{
		"status":     t.To,
		"updated_at": r.clock.Now(),
		"version":    gorm.Expr("version + 1"),
	}
	for k, v := range t.Fields {
		updates[k] = v
	}

	query := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", t.ID, t.From)
	if t.RequireApproved {
		query = query.Where("approved = ?", true)
	}

	res := query.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		return nil, r.explainMiss(ctx, t)
	}

	return r.FindByID(ctx, t.ID)
}

// SetApproved flips the approval flag. Approval only means something before
// the task starts, so the flag is frozen once the task leaves pending.
func (r *TaskRepository) SetApproved(ctx context.Context, id string, approved bool) (*model.Task, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", id, constants.StatusPending).
		Updates(map[string]any{
			"approved":   approved,
			"updated_at": r.clock.Now(),
			"version":    gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		return nil, r.explainMiss(ctx, Transition{ID: id, From: constants.StatusPending})
	}

	return r.FindByID(ctx, id)
}

func (r *TaskRepository) explainMiss(ctx context.Context, t Transition) error {
	current, err := r.FindByID(ctx, t.ID)
	if err != nil {
		return err
	}

	if current.Status != t.From {
		return apperrors.Newf(apperrors.ErrConflict,
			"task %s is %s, expected %s", t.ID, current.Status, t.From)
	}

	if t.RequireApproved && !current.Approved {
		return apperrors.Newf(apperrors.ErrApprovalRequired,
			"task %s of type %s requires approval before execution", t.ID, current.Type)
	}

	// The row matched on re-read, so another writer moved it in between.
	return apperrors.Newf(apperrors.ErrConflict, "task %s was modified concurrently", t.ID)
}

func clampLimit(limit int) (int, error) {
	if limit <= 0 {
		return 0, apperrors.ErrInvalidLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit, nil
	}
	return limit, nil
}

// monotonicClock hands out strictly increasing UTC timestamps at microsecond
// resolution, which is what Postgres keeps.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *monotonicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(c.last) {
		now = c.last.Add(time.Microsecond)
	}
	c.last = now
	return now
}
