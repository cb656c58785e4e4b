package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tmshq/tms-go-api/internal/models"
)

// ScopeFilter is the compiled role/scope visibility predicate. The service
// layer builds it from the viewer's role and current relationships; this
// package only translates it into SQL. The same rules exist as a pure
// function in the service layer so both sides are tested against each other.
type ScopeFilter struct {
	// ActorOnly restricts the feed to a single actor (scope=me). When set,
	// every other field except ExcludeLogins is ignored.
	ActorOnly *uint
	// AllowAll grants visibility of every event (admin broad scope).
	AllowAll bool
	// LoginVisibleActorIDs, when non-nil under AllowAll, limits login events
	// to the given actors. Admins only see other admins' logins.
	LoginVisibleActorIDs []uint
	// OwnActorID adds the viewer's own events to the disjunction.
	OwnActorID *uint
	// ProjectIDs adds project-entity events for the given projects.
	ProjectIDs []uint
	// TaskIDs adds task-entity events for the given tasks.
	TaskIDs []uint
	// ExcludeLogins drops login events unconditionally (scope=notifications).
	ExcludeLogins bool
}

// ActivityQueryFilter narrows the feed on top of the scope predicate. All
// parts are combined with AND.
type ActivityQueryFilter struct {
	Scope      ScopeFilter
	ActionType string
	EntityType string
	DateFrom   *time.Time
	DateTo     *time.Time
	Search     string
	Limit      int
	Offset     int
}

// ActivityEventRow is a stored event joined with the actor's current display
// name. The name is resolved at read time; the event itself stays immutable.
type ActivityEventRow struct {
	models.ActivityEvent
	ActorName string
}

// ActivityLogRepository persists the append-only activity log. There are no
// update or delete methods on purpose.
type ActivityLogRepository interface {
	Append(ctx context.Context, event *models.ActivityEvent) error
	List(ctx context.Context, filter ActivityQueryFilter) ([]ActivityEventRow, int64, error)
	Latest(ctx context.Context, filter ActivityQueryFilter) (*ActivityEventRow, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Append(ctx context.Context, event *models.ActivityEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityQueryFilter) ([]ActivityEventRow, int64, error) {
	query := r.buildQuery(ctx, filter)

	countQuery := query.Session(&gorm.Session{})
	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var rows []ActivityEventRow
	if err := query.
		Select("activity_events.*, COALESCE(users.full_name, '') AS actor_name").
		Order("activity_events.created_at DESC, activity_events.id DESC").
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	return rows, total, nil
}

func (r *activityLogRepository) Latest(ctx context.Context, filter ActivityQueryFilter) (*ActivityEventRow, error) {
	query := r.buildQuery(ctx, filter)

	var rows []ActivityEventRow
	if err := query.
		Select("activity_events.*, COALESCE(users.full_name, '') AS actor_name").
		Order("activity_events.created_at DESC, activity_events.id DESC").
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *activityLogRepository) buildQuery(ctx context.Context, filter ActivityQueryFilter) *gorm.DB {
	query := r.db.WithContext(ctx).
		Model(&models.ActivityEvent{}).
		Joins("LEFT JOIN users ON users.id = activity_events.actor_id")

	query = applyScope(query, filter.Scope)

	if filter.ActionType != "" {
		query = query.Where("activity_events.action_type = ?", filter.ActionType)
	}
	if filter.EntityType != "" {
		query = query.Where("activity_events.entity_type = ?", filter.EntityType)
	}
	if filter.DateFrom != nil {
		query = query.Where("activity_events.created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("activity_events.created_at <= ?", *filter.DateTo)
	}
	if filter.Search != "" {
		needle := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where(
			"lower(activity_events.description) LIKE ? OR lower(COALESCE(users.full_name, '')) LIKE ?",
			needle, needle,
		)
	}

	return query
}

func applyScope(query *gorm.DB, scope ScopeFilter) *gorm.DB {
	if scope.ExcludeLogins {
		query = query.Where("activity_events.action_type <> ?", models.ActionLogin)
	}

	if scope.ActorOnly != nil {
		return query.Where("activity_events.actor_id = ?", *scope.ActorOnly)
	}

	if scope.AllowAll {
		if scope.LoginVisibleActorIDs != nil {
			query = query.Where(
				"activity_events.action_type <> ? OR activity_events.actor_id IN ?",
				models.ActionLogin, scope.LoginVisibleActorIDs,
			)
		}
		return query
	}

	parts := make([]string, 0, 3)
	args := make([]interface{}, 0, 5)
	if scope.OwnActorID != nil {
		parts = append(parts, "activity_events.actor_id = ?")
		args = append(args, *scope.OwnActorID)
	}
	if len(scope.ProjectIDs) > 0 {
		parts = append(parts, "(activity_events.entity_type = ? AND activity_events.entity_id IN ?)")
		args = append(args, models.EntityProject, scope.ProjectIDs)
	}
	if len(scope.TaskIDs) > 0 {
		parts = append(parts, "(activity_events.entity_type = ? AND activity_events.entity_id IN ?)")
		args = append(args, models.EntityTask, scope.TaskIDs)
	}

	if len(parts) == 0 {
		return query.Where("1 = 0")
	}
	return query.Where(strings.Join(parts, " OR "), args...)
}
