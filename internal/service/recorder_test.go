package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
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

type failingActivityRepo struct{}

func (f *failingActivityRepo) Append(context.Context, *models.ActivityEvent) error {
	return errors.New("datastore unavailable")
}

func (f *failingActivityRepo) List(context.Context, repository.ActivityQueryFilter) ([]repository.ActivityEventRow, int64, error) {
	return nil, 0, errors.New("datastore unavailable")
}

func (f *failingActivityRepo) Latest(context.Context, repository.ActivityQueryFilter) (*repository.ActivityEventRow, error) {
	return nil, errors.New("datastore unavailable")
}

func setupRecorder(t *testing.T) (service.ActivityRecorder, repository.ActivityLogRepository, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.ActivityEvent{}))

	events := repository.NewActivityLogRepository(db)
	rec := service.NewActivityRecorder(
		events,
		repository.NewUserRepository(db),
		nil,
		"",
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.New(io.Discard),
	)

	return rec, events, db
}

func TestRecordNormalizesAndSanitizes(t *testing.T) {
	rec, _, _ := setupRecorder(t)

	event, err := rec.Record(context.Background(), service.ActivityEntry{
		ActorID:     1,
		ActionType:  "  Task_Created ",
		EntityType:  " TASK ",
		EntityID:    uintPtr(7),
		Description: "Created task: <b>Deploy</b> in project: Apollo",
	}, service.RequestMeta{IPAddress: "10.0.0.1", UserAgent: "curl/8.0"})
	require.NoError(t, err)

	require.Equal(t, models.ActionTaskCreated, event.ActionType)
	require.Equal(t, models.EntityTask, event.EntityType)
	require.Equal(t, "Created task: Deploy in project: Apollo", event.Description)
	require.NotNil(t, event.IPAddress)
	require.Equal(t, "10.0.0.1", *event.IPAddress)
	require.NotNil(t, event.UserAgent)
	require.Equal(t, "curl/8.0", *event.UserAgent)
	require.NotZero(t, event.ID)
}

func TestRecordStripsMarkup(t *testing.T) {
	rec, _, _ := setupRecorder(t)

	event, err := rec.Record(context.Background(), service.ActivityEntry{
		ActorID:     1,
		ActionType:  models.ActionTaskCreated,
		EntityType:  models.EntityTask,
		Description: `<script>alert("x")</script><img src=x onerror=alert(1)>Created task`,
	}, service.RequestMeta{})
	require.NoError(t, err)
	require.NotContains(t, event.Description, "<")
	require.NotContains(t, event.Description, "onerror")
	require.Contains(t, event.Description, "Created task")
}

func TestRecordKeepsQuotedNamesReadable(t *testing.T) {
	rec, events, _ := setupRecorder(t)

	event, err := rec.Record(context.Background(), service.ActivityEntry{
		ActorID:     1,
		ActionType:  models.ActionTaskAssigned,
		EntityType:  models.EntityTask,
		EntityID:    uintPtr(7),
		Description: "Assigned task 'R&D Review' to Budi",
	}, service.RequestMeta{})
	require.NoError(t, err)

	// Quotes and ampersands are stored as-is, not entity-escaped, so the
	// served feed text stays human-readable and substring search matches.
	require.Equal(t, "Assigned task 'R&D Review' to Budi", event.Description)

	rows, total, err := events.List(context.Background(), repository.ActivityQueryFilter{
		Scope:  repository.ScopeFilter{AllowAll: true},
		Search: "'R&D Review'",
		Limit:  10,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Equal(t, event.ID, rows[0].ID)
}

func TestRecordRequiresActionAndEntityType(t *testing.T) {
	rec, _, _ := setupRecorder(t)

	_, err := rec.Record(context.Background(), service.ActivityEntry{ActorID: 1, EntityType: models.EntityTask}, service.RequestMeta{})
	require.Error(t, err)

	_, err = rec.Record(context.Background(), service.ActivityEntry{ActorID: 1, ActionType: models.ActionTaskCreated}, service.RequestMeta{})
	require.Error(t, err)
}

func TestWrappersSwallowDatastoreFailures(t *testing.T) {
	rec := service.NewActivityRecorder(
		&failingActivityRepo{},
		nil,
		nil,
		"",
		validator.New(validator.WithRequiredStructEnabled()),
		zerolog.New(io.Discard),
	)

	// None of these may panic or surface the failure to the caller.
	meta := service.RequestMeta{}
	rec.TaskCreated(context.Background(), 1, meta, 7, "Deploy", "Apollo")
	rec.TaskStatusChanged(context.Background(), 1, meta, 7, "Deploy", "todo", "done")
	rec.Login(context.Background(), 1, "budi", meta)
	rec.PasswordChanged(context.Background(), 1, "budi", meta)
}

func TestWrapperDescriptionsAndMetadata(t *testing.T) {
	rec, events, _ := setupRecorder(t)
	ctx := context.Background()
	meta := service.RequestMeta{}

	rec.TaskStatusChanged(ctx, 1, meta, 7, "Deploy", "todo", "in_progress")

	rows, total, err := events.List(ctx, repository.ActivityQueryFilter{Scope: repository.ScopeFilter{AllowAll: true}, Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	row := rows[0]
	require.Equal(t, "Changed task 'Deploy' status from todo to in_progress", row.Description)
	require.Equal(t, models.ActionTaskStatusChanged, row.ActionType)
	require.NotNil(t, row.OldValue)
	require.Equal(t, "todo", *row.OldValue)
	require.NotNil(t, row.NewValue)
	require.Equal(t, "in_progress", *row.NewValue)
	require.Equal(t, "Deploy", row.Metadata["task_title"])
}

func TestCreateManualValidatesMetadataShape(t *testing.T) {
	rec, _, db := setupRecorder(t)

	admin := models.User{Username: "root", FullName: "Root Admin", Email: "root@example.com", PasswordHash: "x", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&admin).Error)
	viewer := service.Viewer{ID: admin.ID, Role: models.RoleAdmin}

	_, err := rec.CreateManual(context.Background(), viewer, dto.ActivityCreateRequest{
		ActionType:  "system_note",
		EntityType:  models.EntitySystem,
		Description: "Scheduled maintenance window",
		Metadata:    map[string]interface{}{"nested": map[string]interface{}{"not": "allowed"}},
	}, service.RequestMeta{})
	require.ErrorIs(t, err, service.ErrInvalidFilter)

	item, err := rec.CreateManual(context.Background(), viewer, dto.ActivityCreateRequest{
		ActionType:  "system_note",
		EntityType:  models.EntitySystem,
		Description: "Scheduled maintenance window",
		Metadata:    map[string]interface{}{"window": "02:00-03:00", "approved": true},
	}, service.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "system_note", item.ActionType)
	require.Equal(t, "Root Admin", item.ActorName)
	require.Equal(t, "02:00-03:00", item.Metadata["window"])
}

func TestCreateManualRejectsMissingFields(t *testing.T) {
	rec, _, _ := setupRecorder(t)
	viewer := service.Viewer{ID: 1, Role: models.RoleAdmin}

	_, err := rec.CreateManual(context.Background(), viewer, dto.ActivityCreateRequest{
		EntityType:  models.EntitySystem,
		Description: "missing action type",
	}, service.RequestMeta{})
	require.Error(t, err)

	_, err = rec.CreateManual(context.Background(), viewer, dto.ActivityCreateRequest{
		ActionType:  "system_note",
		EntityType:  "galaxy",
		Description: "bad entity type",
	}, service.RequestMeta{})
	require.Error(t, err)
}
