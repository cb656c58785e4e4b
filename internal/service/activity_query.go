package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tmshq/tms-go-api/internal/dto"
	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/observability"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// ErrInvalidFilter marks malformed query parameters; handlers map it to a 400.
var ErrInvalidFilter = errors.New("invalid activity filter")

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 200
)

// ActivityQueryService is the read side of the activity log: role- and
// scope-filtered, searched, paginated feeds plus the badge head lookup.
type ActivityQueryService interface {
	List(ctx context.Context, viewer Viewer, req dto.ActivityListRequest) (dto.ActivityListResponse, error)
	Latest(ctx context.Context, viewer Viewer) (*dto.ActivityItem, error)
}

type activityQueryService struct {
	events    repository.ActivityLogRepository
	users     repository.UserRepository
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// latestCacheEntry wraps the badge head result so an empty feed is cacheable
// and distinguishable from a cache miss.
type latestCacheEntry struct {
	Item *dto.ActivityItem `json:"item"`
}

// NewActivityQueryService constructs the query engine. The Redis client is
// optional; when nil the badge head lookup always hits the database.
func NewActivityQueryService(events repository.ActivityLogRepository, users repository.UserRepository, projects repository.ProjectRepository, tasks repository.TaskRepository, cache *redis.Client, cacheTTL time.Duration, validate *validator.Validate, logger zerolog.Logger) ActivityQueryService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Second
	}
	return &activityQueryService{
		events:    events,
		users:     users,
		projects:  projects,
		tasks:     tasks,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validate,
		logger:    logger.With().Str("component", "activity_query_service").Logger(),
		tracer:    otel.Tracer("github.com/tmshq/tms-go-api/internal/service/activity_query"),
	}
}

func (s *activityQueryService) List(ctx context.Context, viewer Viewer, req dto.ActivityListRequest) (dto.ActivityListResponse, error) {
	scope, filter, err := s.prepareFilter(ctx, viewer, req)
	if err != nil {
		return dto.ActivityListResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "activity.query", trace.WithAttributes(
		attribute.String("activity.scope", string(scope)),
		attribute.String("activity.role", viewer.Role),
	))
	defer span.End()

	start := time.Now()
	rows, total, err := s.events.List(spanCtx, filter)
	observability.QueryLatency().WithLabelValues(string(scope)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return dto.ActivityListResponse{}, err
	}

	items := make([]dto.ActivityItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, dto.NewActivityItem(row.ActivityEvent, row.ActorName))
	}

	return dto.ActivityListResponse{
		Activities: items,
		Pagination: dto.Pagination{
			Total:   total,
			Limit:   filter.Limit,
			Offset:  filter.Offset,
			HasMore: int64(filter.Offset+filter.Limit) < total,
		},
	}, nil
}

func (s *activityQueryService) Latest(ctx context.Context, viewer Viewer) (*dto.ActivityItem, error) {
	cacheKey := fmt.Sprintf("activity:latest:v1:%d:%s", viewer.ID, viewer.Role)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			var entry latestCacheEntry
			if err := json.Unmarshal([]byte(cached), &entry); err == nil {
				observability.BadgeLookups().WithLabelValues("hit").Inc()
				return entry.Item, nil
			}
		}
	}

	rel, err := s.resolveRelationships(ctx, viewer)
	if err != nil {
		return nil, err
	}

	filter := repository.ActivityQueryFilter{
		Scope: CompileScope(viewer, ScopeNotifications, rel),
	}
	row, err := s.events.Latest(ctx, filter)
	if err != nil {
		observability.BadgeLookups().WithLabelValues("error").Inc()
		return nil, err
	}

	var item *dto.ActivityItem
	if row != nil {
		mapped := dto.NewActivityItem(row.ActivityEvent, row.ActorName)
		item = &mapped
	}

	if s.cache != nil {
		if payload, err := json.Marshal(latestCacheEntry{Item: item}); err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to write badge lookup cache")
			}
		}
	}

	observability.BadgeLookups().WithLabelValues("miss").Inc()
	return item, nil
}

func (s *activityQueryService) prepareFilter(ctx context.Context, viewer Viewer, req dto.ActivityListRequest) (Scope, repository.ActivityQueryFilter, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", repository.ActivityQueryFilter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	scope := Scope(strings.TrimSpace(req.Scope))
	if scope == "" {
		scope = ScopeAll
	}

	dateFrom, err := parseFilterDate(req.DateFrom, false)
	if err != nil {
		return "", repository.ActivityQueryFilter{}, fmt.Errorf("%w: date_from: %v", ErrInvalidFilter, err)
	}
	dateTo, err := parseFilterDate(req.DateTo, true)
	if err != nil {
		return "", repository.ActivityQueryFilter{}, fmt.Errorf("%w: date_to: %v", ErrInvalidFilter, err)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	rel, err := s.resolveRelationships(ctx, viewer)
	if err != nil {
		return "", repository.ActivityQueryFilter{}, err
	}

	return scope, repository.ActivityQueryFilter{
		Scope:      CompileScope(viewer, scope, rel),
		ActionType: strings.ToLower(strings.TrimSpace(req.ActionType)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
		DateFrom:   dateFrom,
		DateTo:     dateTo,
		Search:     strings.TrimSpace(req.Search),
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// resolveRelationships loads the viewer's current relationships; only the
// lookups the role actually uses are performed.
func (s *activityQueryService) resolveRelationships(ctx context.Context, viewer Viewer) (ViewerRelationships, error) {
	rel := ViewerRelationships{}

	switch viewer.Role {
	case models.RoleAdmin:
		adminIDs, err := s.users.AdminIDs(ctx)
		if err != nil {
			return rel, err
		}
		rel.AdminActors = idSet(adminIDs)
		// The viewer always sees their own logins.
		rel.AdminActors[viewer.ID] = true

	case models.RoleManager:
		projectIDs, err := s.projects.IDsManagedBy(ctx, viewer.ID)
		if err != nil {
			return rel, err
		}
		taskIDs, err := s.tasks.IDsInProjects(ctx, projectIDs)
		if err != nil {
			return rel, err
		}
		rel.ManagedProjects = idSet(projectIDs)
		rel.ManagedTasks = idSet(taskIDs)

	case models.RoleMember:
		taskIDs, err := s.tasks.IDsAssignedTo(ctx, viewer.ID)
		if err != nil {
			return rel, err
		}
		projectIDs, err := s.projects.IDsWithMember(ctx, viewer.ID)
		if err != nil {
			return rel, err
		}
		rel.AssignedTasks = idSet(taskIDs)
		rel.MemberProjects = idSet(projectIDs)
	}

	return rel, nil
}

func parseFilterDate(value string, endOfDay bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}

	parsed, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return nil, fmt.Errorf("unparseable date %q", trimmed)
	}
	if endOfDay {
		// A bare date from a date picker means the whole day inclusive.
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return &parsed, nil
}
