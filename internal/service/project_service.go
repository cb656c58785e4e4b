package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// ProjectService owns project mutations, each recorded in the activity log.
type ProjectService interface {
	Create(ctx context.Context, viewer Viewer, req dto.ProjectCreateRequest, meta RequestMeta) (*models.Project, error)
	Update(ctx context.Context, viewer Viewer, projectID uint, req dto.ProjectUpdateRequest, meta RequestMeta) (*models.Project, error)
	ChangeStatus(ctx context.Context, viewer Viewer, projectID uint, req dto.ProjectStatusRequest, meta RequestMeta) (*models.Project, error)
	AddMember(ctx context.Context, viewer Viewer, projectID, userID uint, meta RequestMeta) error
}

type projectService struct {
	projects  repository.ProjectRepository
	users     repository.UserRepository
	recorder  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewProjectService constructs the project service.
func NewProjectService(projects repository.ProjectRepository, users repository.UserRepository, recorder ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ProjectService {
	return &projectService{
		projects:  projects,
		users:     users,
		recorder:  recorder,
		validator: validate,
		logger:    logger.With().Str("component", "project_service").Logger(),
	}
}

func (s *projectService) Create(ctx context.Context, viewer Viewer, req dto.ProjectCreateRequest, meta RequestMeta) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	project := models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		ManagerID:   req.ManagerID,
		Status:      models.ProjectStatusActive,
	}
	if err := s.projects.Create(ctx, &project); err != nil {
		return nil, err
	}

	s.recorder.ProjectCreated(ctx, viewer.ID, meta, project.ID, project.Name)

	for _, memberID := range req.MemberIDs {
		if err := s.AddMember(ctx, viewer, project.ID, memberID, meta); err != nil {
			s.logger.Warn().Err(err).Uint("member_id", memberID).Msg("failed to add project member")
		}
	}

	return &project, nil
}

func (s *projectService) Update(ctx context.Context, viewer Viewer, projectID uint, req dto.ProjectUpdateRequest, meta RequestMeta) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	changes := make([]string, 0, 3)
	if req.Name != nil && *req.Name != project.Name {
		project.Name = strings.TrimSpace(*req.Name)
		changes = append(changes, "name")
	}
	if req.Description != nil && *req.Description != project.Description {
		project.Description = *req.Description
		changes = append(changes, "description")
	}
	if req.ManagerID != nil && *req.ManagerID != project.ManagerID {
		project.ManagerID = *req.ManagerID
		changes = append(changes, "manager")
	}

	if len(changes) == 0 {
		return project, nil
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	s.recorder.ProjectUpdated(ctx, viewer.ID, meta, project.ID, project.Name, changes)
	return project, nil
}

func (s *projectService) ChangeStatus(ctx context.Context, viewer Viewer, projectID uint, req dto.ProjectStatusRequest, meta RequestMeta) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}

	oldStatus := project.Status
	project.Status = req.Status
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	s.recorder.ProjectStatusChanged(ctx, viewer.ID, meta, project.ID, project.Name, oldStatus, req.Status)
	return project, nil
}

func (s *projectService) AddMember(ctx context.Context, viewer Viewer, projectID, userID uint, meta RequestMeta) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	member, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.projects.AddMember(ctx, projectID, userID); err != nil {
		return err
	}

	s.recorder.MemberAdded(ctx, viewer.ID, meta, project.ID, project.Name, member.FullName)
	return nil
}
