package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/models"
)

// TaskRepository reads and writes tasks, notes and attachment references.
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id uint) (*models.Task, error)
	CreateNote(ctx context.Context, note *models.TaskNote) error
	CreateAttachment(ctx context.Context, attachment *models.TaskAttachment) error
	IDsInProjects(ctx context.Context, projectIDs []uint) ([]uint, error)
	IDsAssignedTo(ctx context.Context, userID uint) ([]uint, error)
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository constructs the task repository.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *taskRepository) FindByID(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) CreateNote(ctx context.Context, note *models.TaskNote) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *taskRepository) CreateAttachment(ctx context.Context, attachment *models.TaskAttachment) error {
	return r.db.WithContext(ctx).Create(attachment).Error
}

func (r *taskRepository) IDsInProjects(ctx context.Context, projectIDs []uint) ([]uint, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("project_id IN ?", projectIDs).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *taskRepository) IDsAssignedTo(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("assignee_id = ?", userID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
