package service

import (
	"sort"

	"github.com/tmshq/tms-go-api/internal/models"
	"github.com/tmshq/tms-go-api/internal/repository"
)

// Scope selects which slice of the activity log a query covers.
type Scope string

const (
	// ScopeAll is the broad role-based feed.
	ScopeAll Scope = "all"
	// ScopeMe restricts the feed to the viewer's own actions.
	ScopeMe Scope = "me"
	// ScopeNotifications is the broad feed minus login events, used by the badge.
	ScopeNotifications Scope = "notifications"
)

// Viewer is the authenticated identity a query runs as. It is supplied by the
// token middleware and trusted unconditionally.
type Viewer struct {
	ID   uint
	Role string
}

// ViewerRelationships holds the viewer's CURRENT relationships to projects and
// tasks. Visibility is evaluated against these, not against relationships at
// event-write time: a reassigned task drops out of the old assignee's feed even
// for events that predate the reassignment (their own actions stay visible via
// the actor clause).
type ViewerRelationships struct {
	ManagedProjects map[uint]bool
	ManagedTasks    map[uint]bool
	AssignedTasks   map[uint]bool
	MemberProjects  map[uint]bool
	AdminActors     map[uint]bool
}

// Visible reports whether one event is visible to the viewer under the given
// scope. This is the reference rule engine; CompileScope derives the SQL-side
// predicate from the same rules and the two are tested against each other.
func Visible(viewer Viewer, scope Scope, event models.ActivityEvent, rel ViewerRelationships) bool {
	// Logins are not notifications, for anyone.
	if scope == ScopeNotifications && event.ActionType == models.ActionLogin {
		return false
	}

	if scope == ScopeMe {
		return event.ActorID == viewer.ID
	}

	switch viewer.Role {
	case models.RoleAdmin:
		// Admins see everything except logins performed by non-admin actors.
		if event.ActionType == models.ActionLogin && !rel.AdminActors[event.ActorID] {
			return false
		}
		return true

	case models.RoleManager:
		if event.ActorID == viewer.ID {
			return true
		}
		if event.EntityID == nil {
			return false
		}
		switch event.EntityType {
		case models.EntityProject:
			return rel.ManagedProjects[*event.EntityID]
		case models.EntityTask:
			return rel.ManagedTasks[*event.EntityID]
		}
		return false

	case models.RoleMember:
		if event.ActorID == viewer.ID {
			return true
		}
		if event.EntityID == nil {
			return false
		}
		switch event.EntityType {
		case models.EntityTask:
			return rel.AssignedTasks[*event.EntityID]
		case models.EntityProject:
			return rel.MemberProjects[*event.EntityID]
		}
		return false
	}

	return false
}

// CompileScope translates the visibility rules into the repository's filter
// form so the predicate runs inside the database for pagination and counting.
func CompileScope(viewer Viewer, scope Scope, rel ViewerRelationships) repository.ScopeFilter {
	filter := repository.ScopeFilter{
		ExcludeLogins: scope == ScopeNotifications,
	}

	if scope == ScopeMe {
		actorID := viewer.ID
		filter.ActorOnly = &actorID
		return filter
	}

	switch viewer.Role {
	case models.RoleAdmin:
		filter.AllowAll = true
		filter.LoginVisibleActorIDs = sortedIDs(rel.AdminActors)

	case models.RoleManager:
		actorID := viewer.ID
		filter.OwnActorID = &actorID
		filter.ProjectIDs = sortedIDs(rel.ManagedProjects)
		filter.TaskIDs = sortedIDs(rel.ManagedTasks)

	case models.RoleMember:
		actorID := viewer.ID
		filter.OwnActorID = &actorID
		filter.ProjectIDs = sortedIDs(rel.MemberProjects)
		filter.TaskIDs = sortedIDs(rel.AssignedTasks)
	}

	// Unknown roles compile to an empty disjunction, which matches nothing.
	return filter
}

func sortedIDs(set map[uint]bool) []uint {
	ids := make([]uint, 0, len(set))
	for id, ok := range set {
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func idSet(ids []uint) map[uint]bool {
	set := make(map[uint]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
