package service_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
	"github.com/tmshq/tms-go-api/internal/service"
)

type taskFixture struct {
	svc     service.TaskService
	events  repository.ActivityLogRepository
	db      *gorm.DB
	manager models.User
	member  models.User
	project models.Project
}

func setupTaskService(t *testing.T) taskFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Project{}, &models.ProjectMember{}, &models.Task{}, &models.TaskNote{}, &models.TaskAttachment{}, &models.ActivityEvent{}))

	manager := models.User{Username: "tono", FullName: "Tono Raharjo", Email: "tono@example.com", PasswordHash: "x", Role: models.RoleManager}
	member := models.User{Username: "budi", FullName: "Budi Santoso", Email: "budi@example.com", PasswordHash: "x", Role: models.RoleMember}
	require.NoError(t, db.Create(&manager).Error)
	require.NoError(t, db.Create(&member).Error)

	project := models.Project{Name: "Apollo", ManagerID: manager.ID, Status: models.ProjectStatusActive}
	require.NoError(t, db.Create(&project).Error)

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	users := repository.NewUserRepository(db)
	events := repository.NewActivityLogRepository(db)
	rec := service.NewActivityRecorder(events, users, nil, "", validate, logger)
	svc := service.NewTaskService(repository.NewTaskRepository(db), repository.NewProjectRepository(db), users, rec, validate, logger)

	return taskFixture{svc: svc, events: events, db: db, manager: manager, member: member, project: project}
}

func (f taskFixture) allEvents(t *testing.T) []repository.ActivityEventRow {
	t.Helper()

	rows, _, err := f.events.List(context.Background(), repository.ActivityQueryFilter{
		Scope: repository.ScopeFilter{AllowAll: true},
		Limit: 50,
	})
	require.NoError(t, err)
	return rows
}

func TestTaskCreateRecordsCreationAndAssignment(t *testing.T) {
	f := setupTaskService(t)
	viewer := service.Viewer{ID: f.manager.ID, Role: models.RoleManager}

	task, err := f.svc.Create(context.Background(), viewer, dto.TaskCreateRequest{
		ProjectID:  f.project.ID,
		Title:      "Deploy",
		AssigneeID: &f.member.ID,
	}, service.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusTodo, task.Status)
	require.Equal(t, "medium", task.Priority)

	rows := f.allEvents(t)
	require.Len(t, rows, 2)

	// Newest first: the assignment follows the creation.
	require.Equal(t, models.ActionTaskAssigned, rows[0].ActionType)
	require.Equal(t, "Assigned task 'Deploy' to Budi Santoso", rows[0].Description)
	require.Equal(t, models.ActionTaskCreated, rows[1].ActionType)
	require.Equal(t, "Created task: Deploy in project: Apollo", rows[1].Description)
	require.NotNil(t, rows[1].EntityID)
	require.Equal(t, task.ID, *rows[1].EntityID)
}

func TestTaskCreateUnknownProject(t *testing.T) {
	f := setupTaskService(t)
	viewer := service.Viewer{ID: f.manager.ID, Role: models.RoleManager}

	_, err := f.svc.Create(context.Background(), viewer, dto.TaskCreateRequest{ProjectID: 999, Title: "Ghost"}, service.RequestMeta{})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.Empty(t, f.allEvents(t))
}

func TestTaskStatusChangeRecordsOldAndNew(t *testing.T) {
	f := setupTaskService(t)
	viewer := service.Viewer{ID: f.member.ID, Role: models.RoleMember}

	task := models.Task{ProjectID: f.project.ID, Title: "Review", Status: models.TaskStatusTodo, Priority: "high", CreatedBy: f.manager.ID}
	require.NoError(t, f.db.Create(&task).Error)

	updated, err := f.svc.UpdateStatus(context.Background(), viewer, task.ID, dto.TaskStatusRequest{Status: models.TaskStatusInProgress}, service.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInProgress, updated.Status)

	rows := f.allEvents(t)
	require.Len(t, rows, 1)
	require.Equal(t, "Changed task 'Review' status from todo to in_progress", rows[0].Description)
	require.NotNil(t, rows[0].OldValue)
	require.Equal(t, models.TaskStatusTodo, *rows[0].OldValue)
	require.NotNil(t, rows[0].NewValue)
	require.Equal(t, models.TaskStatusInProgress, *rows[0].NewValue)

	_, err = f.svc.UpdateStatus(context.Background(), viewer, task.ID, dto.TaskStatusRequest{Status: "shipped"}, service.RequestMeta{})
	require.Error(t, err, "status outside the closed set is rejected")
}

func TestTaskAddAttachmentDetectsContentType(t *testing.T) {
	f := setupTaskService(t)
	viewer := service.Viewer{ID: f.member.ID, Role: models.RoleMember}

	task := models.Task{ProjectID: f.project.ID, Title: "Docs", Status: models.TaskStatusTodo, Priority: "low", CreatedBy: f.manager.ID}
	require.NoError(t, f.db.Create(&task).Error)

	content := []byte("%PDF-1.7\n%fake body\n")
	attachment, err := f.svc.AddAttachment(context.Background(), viewer, task.ID, "handbook.pdf", content, service.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), attachment.SizeBytes)
	require.True(t, strings.HasPrefix(attachment.ContentType, "application/pdf"))

	rows := f.allEvents(t)
	require.Len(t, rows, 1)
	require.Equal(t, models.ActionTaskAttachmentAdded, rows[0].ActionType)
	require.Equal(t, "Added attachment 'handbook.pdf' to task: Docs", rows[0].Description)
	require.Equal(t, "handbook.pdf", rows[0].Metadata["filename"])
}

func TestTaskAddNoteRecordsComment(t *testing.T) {
	f := setupTaskService(t)
	viewer := service.Viewer{ID: f.member.ID, Role: models.RoleMember}

	task := models.Task{ProjectID: f.project.ID, Title: "Review", Status: models.TaskStatusTodo, Priority: "high", CreatedBy: f.manager.ID}
	require.NoError(t, f.db.Create(&task).Error)

	note, err := f.svc.AddNote(context.Background(), viewer, task.ID, dto.TaskNoteRequest{Body: "Looks good"}, service.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, viewer.ID, note.AuthorID)

	rows := f.allEvents(t)
	require.Len(t, rows, 1)
	require.Equal(t, models.ActionTaskCommentAdded, rows[0].ActionType)
	require.Equal(t, "Added comment to task: Review", rows[0].Description)
}
