package service

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/observability"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// Metadata on manually created entries must stay a flat bag of scalars so the
// feed renderer never has to walk nested structures.
const metadataSchemaJSON = `{
	"type": "object",
	"maxProperties": 32,
	"propertyNames": {"maxLength": 64},
	"additionalProperties": {"type": ["string", "number", "boolean", "null"]}
}`

// RequestMeta carries request provenance into the recorder explicitly. Both
// fields are optional; their absence is never an error.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// ActivityEntry is the canonical shape of one event to append.
type ActivityEntry struct {
	ActorID     uint
	ActionType  string
	EntityType  string
	EntityID    *uint
	Description string
	OldValue    *string
	NewValue    *string
	Metadata    map[string]interface{}
}

// ActivityRecorder is the write-side API every domain mutation goes through.
// Record propagates failures for callers that need them (tests, the manual
// admin entry); the per-action wrappers swallow and log instead so a missed
// audit row never fails the operation that triggered it.
type ActivityRecorder interface {
	Record(ctx context.Context, entry ActivityEntry, meta RequestMeta) (*models.ActivityEvent, error)
	CreateManual(ctx context.Context, actor Viewer, req dto.ActivityCreateRequest, meta RequestMeta) (dto.ActivityItem, error)

	UserCreated(ctx context.Context, actorID uint, meta RequestMeta, userID uint, username, role string)
	UserUpdated(ctx context.Context, actorID uint, meta RequestMeta, userID uint, username string, changes []string)
	ProjectCreated(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name string)
	ProjectUpdated(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name string, changes []string)
	ProjectStatusChanged(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name, oldStatus, newStatus string)
	MemberAdded(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, projectName, memberName string)
	TaskCreated(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, projectName string)
	TaskAssigned(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, assigneeName string)
	TaskStatusChanged(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, oldStatus, newStatus string)
	TaskCommentAdded(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title string)
	TaskAttachmentAdded(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, filename, contentType string)
	Login(ctx context.Context, userID uint, username string, meta RequestMeta)
	PasswordChanged(ctx context.Context, userID uint, username string, meta RequestMeta)
}

type recorder struct {
	repo           repository.ActivityLogRepository
	users          repository.UserRepository
	nats           *nats.Conn
	natsSubject    string
	validator      *validator.Validate
	metadataSchema *jsonschema.Schema
	sanitizer      *bluemonday.Policy
	logger         zerolog.Logger
	tracer         trace.Tracer
}

// NewActivityRecorder constructs the recorder. The NATS connection is
// optional; when nil, fanout is skipped entirely.
func NewActivityRecorder(repo repository.ActivityLogRepository, users repository.UserRepository, natsConn *nats.Conn, natsSubject string, validate *validator.Validate, logger zerolog.Logger) ActivityRecorder {
	return &recorder{
		repo:           repo,
		users:          users,
		nats:           natsConn,
		natsSubject:    natsSubject,
		validator:      validate,
		metadataSchema: jsonschema.MustCompileString("metadata.schema.json", metadataSchemaJSON),
		sanitizer:      bluemonday.StrictPolicy(),
		logger:         logger.With().Str("component", "activity_recorder").Logger(),
		tracer:         otel.Tracer("github.com/tmshq/tms-go-api/internal/service/recorder"),
	}
}

func (r *recorder) Record(ctx context.Context, entry ActivityEntry, meta RequestMeta) (*models.ActivityEvent, error) {
	if strings.TrimSpace(entry.ActionType) == "" {
		return nil, fmt.Errorf("action type is required")
	}
	if strings.TrimSpace(entry.EntityType) == "" {
		return nil, fmt.Errorf("entity type is required")
	}

	spanCtx, span := r.tracer.Start(ctx, "activity.record", trace.WithAttributes(
		attribute.String("activity.action_type", entry.ActionType),
		attribute.String("activity.entity_type", entry.EntityType),
	))
	defer span.End()

	event := models.ActivityEvent{
		ActorID:     entry.ActorID,
		ActionType:  strings.ToLower(strings.TrimSpace(entry.ActionType)),
		EntityType:  strings.ToLower(strings.TrimSpace(entry.EntityType)),
		EntityID:    entry.EntityID,
		Description: sanitizeText(r.sanitizer, entry.Description),
		OldValue:    entry.OldValue,
		NewValue:    entry.NewValue,
		Metadata:    toJSONMap(entry.Metadata),
	}
	if ip := strings.TrimSpace(meta.IPAddress); ip != "" {
		event.IPAddress = &ip
	}
	if ua := strings.TrimSpace(meta.UserAgent); ua != "" {
		event.UserAgent = &ua
	}

	if err := r.repo.Append(spanCtx, &event); err != nil {
		span.RecordError(err)
		observability.RecordFailures().Inc()
		return nil, err
	}

	observability.EventsRecorded().WithLabelValues(event.ActionType).Inc()
	r.fanout(spanCtx, event)

	return &event, nil
}

// fanout publishes the stored event for external audit consumers. Strictly
// best-effort: the event is already durable in the log.
func (r *recorder) fanout(ctx context.Context, event models.ActivityEvent) {
	if r.nats == nil || r.natsSubject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to encode activity event for fanout")
		return
	}
	if err := r.nats.Publish(r.natsSubject, payload); err != nil {
		r.logger.Warn().Err(err).Uint("event_id", event.ID).Msg("failed to publish activity event")
	}
}

func (r *recorder) CreateManual(ctx context.Context, actor Viewer, req dto.ActivityCreateRequest, meta RequestMeta) (dto.ActivityItem, error) {
	if err := r.validator.Struct(req); err != nil {
		return dto.ActivityItem{}, err
	}
	if req.Metadata != nil {
		if err := r.metadataSchema.Validate(map[string]interface{}(req.Metadata)); err != nil {
			return dto.ActivityItem{}, fmt.Errorf("%w: metadata: %v", ErrInvalidFilter, err)
		}
	}

	event, err := r.Record(ctx, ActivityEntry{
		ActorID:     actor.ID,
		ActionType:  req.ActionType,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Description: req.Description,
		OldValue:    req.OldValue,
		NewValue:    req.NewValue,
		Metadata:    req.Metadata,
	}, meta)
	if err != nil {
		return dto.ActivityItem{}, err
	}

	actorName := ""
	if user, err := r.users.FindByID(ctx, actor.ID); err == nil {
		actorName = user.FullName
	}

	return dto.NewActivityItem(*event, actorName), nil
}

// record is the wrapper backend: failures are logged and swallowed so the
// caller's domain operation never rolls back on a missed audit row.
func (r *recorder) record(ctx context.Context, entry ActivityEntry, meta RequestMeta) {
	if _, err := r.Record(ctx, entry, meta); err != nil {
		r.logger.Error().
			Err(err).
			Str("action_type", entry.ActionType).
			Uint("actor_id", entry.ActorID).
			Msg("failed to record activity event")
	}
}

func (r *recorder) UserCreated(ctx context.Context, actorID uint, meta RequestMeta, userID uint, username, role string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionUserCreated,
		EntityType:  models.EntityUser,
		EntityID:    &userID,
		Description: fmt.Sprintf("Created new user: %s with role: %s", username, role),
		NewValue:    &role,
		Metadata:    map[string]interface{}{"username": username, "role": role},
	}, meta)
}

func (r *recorder) UserUpdated(ctx context.Context, actorID uint, meta RequestMeta, userID uint, username string, changes []string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionUserUpdated,
		EntityType:  models.EntityUser,
		EntityID:    &userID,
		Description: fmt.Sprintf("Updated user: %s", username),
		Metadata:    map[string]interface{}{"username": username, "changes": strings.Join(changes, ", ")},
	}, meta)
}

func (r *recorder) ProjectCreated(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionProjectCreated,
		EntityType:  models.EntityProject,
		EntityID:    &projectID,
		Description: fmt.Sprintf("Created project: %s", name),
		Metadata:    map[string]interface{}{"project_name": name},
	}, meta)
}

func (r *recorder) ProjectUpdated(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name string, changes []string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionProjectUpdated,
		EntityType:  models.EntityProject,
		EntityID:    &projectID,
		Description: fmt.Sprintf("Updated project: %s", name),
		Metadata:    map[string]interface{}{"project_name": name, "changes": strings.Join(changes, ", ")},
	}, meta)
}

func (r *recorder) ProjectStatusChanged(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, name, oldStatus, newStatus string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionProjectStatusChanged,
		EntityType:  models.EntityProject,
		EntityID:    &projectID,
		Description: fmt.Sprintf("Changed project '%s' status from %s to %s", name, oldStatus, newStatus),
		OldValue:    &oldStatus,
		NewValue:    &newStatus,
		Metadata:    map[string]interface{}{"project_name": name},
	}, meta)
}

func (r *recorder) MemberAdded(ctx context.Context, actorID uint, meta RequestMeta, projectID uint, projectName, memberName string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionMemberAdded,
		EntityType:  models.EntityProject,
		EntityID:    &projectID,
		Description: fmt.Sprintf("Added %s to project: %s", memberName, projectName),
		NewValue:    &memberName,
		Metadata:    map[string]interface{}{"project_name": projectName, "member": memberName},
	}, meta)
}

func (r *recorder) TaskCreated(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, projectName string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionTaskCreated,
		EntityType:  models.EntityTask,
		EntityID:    &taskID,
		Description: fmt.Sprintf("Created task: %s in project: %s", title, projectName),
		Metadata:    map[string]interface{}{"task_title": title, "project_name": projectName},
	}, meta)
}

func (r *recorder) TaskAssigned(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, assigneeName string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionTaskAssigned,
		EntityType:  models.EntityTask,
		EntityID:    &taskID,
		Description: fmt.Sprintf("Assigned task '%s' to %s", title, assigneeName),
		NewValue:    &assigneeName,
		Metadata:    map[string]interface{}{"task_title": title, "assigned_to": assigneeName},
	}, meta)
}

func (r *recorder) TaskStatusChanged(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, oldStatus, newStatus string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionTaskStatusChanged,
		EntityType:  models.EntityTask,
		EntityID:    &taskID,
		Description: fmt.Sprintf("Changed task '%s' status from %s to %s", title, oldStatus, newStatus),
		OldValue:    &oldStatus,
		NewValue:    &newStatus,
		Metadata:    map[string]interface{}{"task_title": title},
	}, meta)
}

func (r *recorder) TaskCommentAdded(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionTaskCommentAdded,
		EntityType:  models.EntityTask,
		EntityID:    &taskID,
		Description: fmt.Sprintf("Added comment to task: %s", title),
		Metadata:    map[string]interface{}{"task_title": title},
	}, meta)
}

func (r *recorder) TaskAttachmentAdded(ctx context.Context, actorID uint, meta RequestMeta, taskID uint, title, filename, contentType string) {
	r.record(ctx, ActivityEntry{
		ActorID:     actorID,
		ActionType:  models.ActionTaskAttachmentAdded,
		EntityType:  models.EntityTask,
		EntityID:    &taskID,
		Description: fmt.Sprintf("Added attachment '%s' to task: %s", filename, title),
		NewValue:    &filename,
		Metadata:    map[string]interface{}{"task_title": title, "filename": filename, "content_type": contentType},
	}, meta)
}

func (r *recorder) Login(ctx context.Context, userID uint, username string, meta RequestMeta) {
	r.record(ctx, ActivityEntry{
		ActorID:     userID,
		ActionType:  models.ActionLogin,
		EntityType:  models.EntitySystem,
		Description: fmt.Sprintf("User %s logged in", username),
		Metadata:    map[string]interface{}{"username": username},
	}, meta)
}

func (r *recorder) PasswordChanged(ctx context.Context, userID uint, username string, meta RequestMeta) {
	r.record(ctx, ActivityEntry{
		ActorID:     userID,
		ActionType:  models.ActionPasswordChanged,
		EntityType:  models.EntitySystem,
		Description: fmt.Sprintf("User %s changed their password", username),
		Metadata:    map[string]interface{}{"username": username},
	}, meta)
}

// sanitizeText strips markup but keeps the text readable: the policy
// entity-escapes its output, which would corrupt quoted names in stored
// descriptions and break substring search over them.
func sanitizeText(policy *bluemonday.Policy, text string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(text)))
}

func toJSONMap(metadata map[string]interface{}) datatypes.JSONMap {
	if metadata == nil {
		return datatypes.JSONMap{}
	}
	result := datatypes.JSONMap{}
	for key, value := range metadata {
		result[key] = value
	}
	return result
}
