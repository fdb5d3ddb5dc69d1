// Package lookup resolves user and workflow references in batches for
// decorated admin views. Resolution is best effort: a missing or unreachable
// record falls back to a placeholder rather than failing the listing.
package lookup

import (
	"context"

	"github.com/rs/zerolog"

	"onboard/internal/repo"
)

// UserRef is the decorated shape of a user reference in listings.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WorkflowRef is the decorated shape of a workflow-template reference.
type WorkflowRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Resolver fetches references in batch. Implementations return whatever
// subset they can find; callers fill gaps with fallbacks.
type Resolver interface {
	Users(ctx context.Context, ids []string) map[string]UserRef
	Workflows(ctx context.Context, ids []string) map[string]WorkflowRef
}

// EmployeeFallback is the placeholder for an unresolvable employee reference.
func EmployeeFallback(id string) UserRef {
	return UserRef{ID: id, Name: "Unknown Employee", Email: "N/A"}
}

// ManagerFallback is the placeholder for an unresolvable manager reference.
func ManagerFallback(id string) UserRef {
	return UserRef{ID: id, Name: "Unknown Manager", Email: "N/A"}
}

// WorkflowFallback is the placeholder for an unresolvable template reference.
func WorkflowFallback(id string) WorkflowRef {
	return WorkflowRef{ID: id, Name: "Unknown Workflow"}
}

// RepoResolver resolves references against the local database. Used when the
// services share one store.
type RepoResolver struct {
	Repo repo.Repo
	Log  zerolog.Logger
}

func (r RepoResolver) Users(ctx context.Context, ids []string) map[string]UserRef {
	out := make(map[string]UserRef, len(ids))
	users, err := r.Repo.ListUsersByIDs(ctx, ids)
	if err != nil {
		r.Log.Warn().Err(err).Msg("user lookup failed, using fallbacks")
		return out
	}
	for id, u := range users {
		out[id] = UserRef{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	return out
}

func (r RepoResolver) Workflows(ctx context.Context, ids []string) map[string]WorkflowRef {
	out := make(map[string]WorkflowRef, len(ids))
	templates, err := r.Repo.ListTemplatesByIDs(ctx, ids)
	if err != nil {
		r.Log.Warn().Err(err).Msg("workflow lookup failed, using fallbacks")
		return out
	}
	for id, wf := range templates {
		out[id] = WorkflowRef{ID: wf.ID, Name: wf.Name, Description: wf.Description}
	}
	return out
}
