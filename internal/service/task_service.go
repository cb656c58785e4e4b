package service

import (
	"context"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// TaskService owns task mutations. Every mutation records exactly one
// activity event through the best-effort recorder.
type TaskService interface {
	Create(ctx context.Context, viewer Viewer, req dto.TaskCreateRequest, meta RequestMeta) (*models.Task, error)
	Assign(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskAssignRequest, meta RequestMeta) (*models.Task, error)
	UpdateStatus(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskStatusRequest, meta RequestMeta) (*models.Task, error)
	AddNote(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskNoteRequest, meta RequestMeta) (*models.TaskNote, error)
	AddAttachment(ctx context.Context, viewer Viewer, taskID uint, filename string, content []byte, meta RequestMeta) (*models.TaskAttachment, error)
	Get(ctx context.Context, taskID uint) (*models.Task, error)
}

type taskService struct {
	tasks     repository.TaskRepository
	projects  repository.ProjectRepository
	users     repository.UserRepository
	recorder  ActivityRecorder
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskService constructs the task service.
func NewTaskService(tasks repository.TaskRepository, projects repository.ProjectRepository, users repository.UserRepository, recorder ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) TaskService {
	return &taskService{
		tasks:     tasks,
		projects:  projects,
		users:     users,
		recorder:  recorder,
		validator: validate,
		logger:    logger.With().Str("component", "task_service").Logger(),
	}
}

func (s *taskService) Create(ctx context.Context, viewer Viewer, req dto.TaskCreateRequest, meta RequestMeta) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	project, err := s.projects.FindByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   req.ProjectID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		AssigneeID:  req.AssigneeID,
		Status:      models.TaskStatusTodo,
		Priority:    req.Priority,
		CreatedBy:   viewer.ID,
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}
	if err := s.tasks.Create(ctx, &task); err != nil {
		return nil, err
	}

	s.recorder.TaskCreated(ctx, viewer.ID, meta, task.ID, task.Title, project.Name)

	if req.AssigneeID != nil {
		if assignee, err := s.users.FindByID(ctx, *req.AssigneeID); err == nil {
			s.recorder.TaskAssigned(ctx, viewer.ID, meta, task.ID, task.Title, assignee.FullName)
		}
	}

	return &task, nil
}

func (s *taskService) Assign(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskAssignRequest, meta RequestMeta) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	assignee, err := s.users.FindByID(ctx, req.AssigneeID)
	if err != nil {
		return nil, err
	}

	task.AssigneeID = &req.AssigneeID
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recorder.TaskAssigned(ctx, viewer.ID, meta, task.ID, task.Title, assignee.FullName)
	return task, nil
}

func (s *taskService) UpdateStatus(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskStatusRequest, meta RequestMeta) (*models.Task, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	oldStatus := task.Status
	task.Status = req.Status
	if err := s.tasks.Update(ctx, task); err != nil {
		return nil, err
	}

	s.recorder.TaskStatusChanged(ctx, viewer.ID, meta, task.ID, task.Title, oldStatus, req.Status)
	return task, nil
}

func (s *taskService) AddNote(ctx context.Context, viewer Viewer, taskID uint, req dto.TaskNoteRequest, meta RequestMeta) (*models.TaskNote, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}

	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	note := models.TaskNote{
		TaskID:   task.ID,
		AuthorID: viewer.ID,
		Body:     req.Body,
	}
	if err := s.tasks.CreateNote(ctx, &note); err != nil {
		return nil, err
	}

	s.recorder.TaskCommentAdded(ctx, viewer.ID, meta, task.ID, task.Title)
	return &note, nil
}

func (s *taskService) AddAttachment(ctx context.Context, viewer Viewer, taskID uint, filename string, content []byte, meta RequestMeta) (*models.TaskAttachment, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	contentType := mimetype.Detect(content).String()
	attachment := models.TaskAttachment{
		TaskID:      task.ID,
		UploadedBy:  viewer.ID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(content)),
	}
	if err := s.tasks.CreateAttachment(ctx, &attachment); err != nil {
		return nil, err
	}

	s.recorder.TaskAttachmentAdded(ctx, viewer.ID, meta, task.ID, task.Title, filename, contentType)
	return &attachment, nil
}

func (s *taskService) Get(ctx context.Context, taskID uint) (*models.Task, error) {
	return s.tasks.FindByID(ctx, taskID)
}
