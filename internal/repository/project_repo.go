package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/models"
)

// ProjectRepository reads and writes projects and their memberships. The
// relationship lookups back the activity visibility rules and always reflect
// the current rows, not the rows at event time.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id uint) (*models.Project, error)
	AddMember(ctx context.Context, projectID, userID uint) error
	RemoveMember(ctx context.Context, projectID, userID uint) error
	IDsManagedBy(ctx context.Context, managerID uint) ([]uint, error)
	IDsWithMember(ctx context.Context, userID uint) ([]uint, error)
}

type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository constructs the project repository.
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

func (r *projectRepository) FindByID(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *projectRepository) AddMember(ctx context.Context, projectID, userID uint) error {
	member := models.ProjectMember{ProjectID: projectID, UserID: userID}
	return r.db.WithContext(ctx).Create(&member).Error
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error
}

func (r *projectRepository) IDsManagedBy(ctx context.Context, managerID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.Project{}).
		Where("manager_id = ?", managerID).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *projectRepository) IDsWithMember(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&models.ProjectMember{}).
		Where("user_id = ?", userID).
		Pluck("project_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
