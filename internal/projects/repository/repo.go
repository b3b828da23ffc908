package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/exteriorai/exteriorai-backend/internal/logging"
	"github.com/exteriorai/exteriorai-backend/internal/metrics"
	"github.com/exteriorai/exteriorai-backend/internal/projects/domain"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

const (
	projectsCollection = "projects"
	activityCollection = "activity"
)

func transformationsCollection(projectID string) string {
	return projectsCollection + "/" + projectID + "/transformations"
}

// ProjectRepository is the gateway for projects, their transformation
// history and the activity feed. No operation spans documents
// transactionally.
type ProjectRepository struct {
	store store.DocumentStore
}

func NewProjectRepository(s store.DocumentStore) *ProjectRepository {
	return &ProjectRepository{store: s}
}

// CreateProject inserts a project and returns its store-assigned id.
func (r *ProjectRepository) CreateProject(ctx context.Context, p domain.NewProject) (string, error) {
	if p.OwnerID == "" {
		return "", domain.ErrOwnerRequired
	}

	data := map[string]any{
		fieldUserID:          p.OwnerID,
		fieldName:            p.Name,
		fieldType:            string(p.Type),
		fieldStatus:          string(p.Status),
		fieldStylePreference: int64(p.StylePreference),
		fieldTransformations: int64(0),
		fieldCreatedAt:       store.ServerTimestamp,
		fieldUpdatedAt:       store.ServerTimestamp,
	}
	if p.Thumbnail != "" {
		data[fieldThumbnail] = p.Thumbnail
	}

	id, err := r.store.Add(ctx, projectsCollection, data)
	if err != nil {
		return "", fmt.Errorf("create project: %w", err)
	}
	return id, nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	doc, err := r.store.Get(ctx, projectsCollection, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	p := projectFromDoc(*doc)
	return &p, nil
}

// GetUserProjects lists the owner's projects, most recently updated first.
func (r *ProjectRepository) GetUserProjects(ctx context.Context, ownerID string) ([]domain.Project, error) {
	docs, err := r.findOrdered(ctx, "get_user_projects", store.Query{
		Collection: projectsCollection,
		Filters:    []store.Filter{{Field: fieldUserID, Value: ownerID}},
		OrderBy:    fieldUpdatedAt,
		Direction:  store.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	out := make([]domain.Project, 0, len(docs))
	for _, d := range docs {
		out = append(out, projectFromDoc(d))
	}
	return out, nil
}

// UpdateProject writes the non-nil fields of u and always stamps updatedAt.
func (r *ProjectRepository) UpdateProject(ctx context.Context, id string, u domain.ProjectUpdate) error {
	err := r.store.Update(ctx, projectsCollection, id, updateFields(u))
	if errors.Is(err, store.ErrNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// DeleteProject removes the project document only. Transformation records
// under it are left in place.
func (r *ProjectRepository) DeleteProject(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, projectsCollection, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

// AddTransformationRecord appends one record with a server timestamp.
func (r *ProjectRepository) AddTransformationRecord(ctx context.Context, projectID string, t domain.NewTransformation) (string, error) {
	data := map[string]any{
		fieldImageURL:  t.ImageURL,
		fieldTimestamp: store.ServerTimestamp,
	}
	if t.PreviousImageURL != "" {
		data[fieldPreviousImageURL] = t.PreviousImageURL
	}
	if t.Prompt != "" {
		data[fieldPrompt] = t.Prompt
	}

	id, err := r.store.Add(ctx, transformationsCollection(projectID), data)
	if err != nil {
		return "", fmt.Errorf("add transformation: %w", err)
	}
	return id, nil
}

func (r *ProjectRepository) GetTransformationRecord(ctx context.Context, projectID, recordID string) (*domain.TransformationRecord, error) {
	doc, err := r.store.Get(ctx, transformationsCollection(projectID), recordID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transformation: %w", err)
	}
	t := transformationFromDoc(*doc)
	return &t, nil
}

// GetProjectTransformations returns the history, newest first.
func (r *ProjectRepository) GetProjectTransformations(ctx context.Context, projectID string) ([]domain.TransformationRecord, error) {
	docs, err := r.findOrdered(ctx, "get_project_transformations", store.Query{
		Collection: transformationsCollection(projectID),
		OrderBy:    fieldTimestamp,
		Direction:  store.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("list transformations: %w", err)
	}

	out := make([]domain.TransformationRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, transformationFromDoc(d))
	}
	return out, nil
}

// CreateActivityLog appends to the activity feed. It never fails the caller:
// the return value reports whether the entry was written.
func (r *ProjectRepository) CreateActivityLog(ctx context.Context, ownerID, action, projectID, projectName string) bool {
	data := map[string]any{
		fieldUserID:    ownerID,
		fieldAction:    action,
		fieldTimestamp: store.ServerTimestamp,
	}
	if projectID != "" {
		data[fieldProjectID] = projectID
	}
	if projectName != "" {
		data[fieldProjectName] = projectName
	}

	if _, err := r.store.Add(ctx, activityCollection, data); err != nil {
		logging.FromContext(ctx).LogWarnf("create_activity_log", "activity %q not recorded: %v", action, err)
		metrics.RecordDegraded(metrics.DegradedActivityLog)
		return false
	}
	return true
}

// GetUserActivity returns up to limit entries, newest first.
func (r *ProjectRepository) GetUserActivity(ctx context.Context, ownerID string, limit int) ([]domain.ActivityLog, error) {
	docs, err := r.findOrdered(ctx, "get_user_activity", store.Query{
		Collection: activityCollection,
		Filters:    []store.Filter{{Field: fieldUserID, Value: ownerID}},
		OrderBy:    fieldTimestamp,
		Direction:  store.Desc,
		Limit:      limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}

	out := make([]domain.ActivityLog, 0, len(docs))
	for _, d := range docs {
		out = append(out, activityFromDoc(d))
	}
	return out, nil
}

// findOrdered runs q and, when the store cannot order it, repeats it
// unordered and sorts in memory with the same ordering rules the index
// applies.
func (r *ProjectRepository) findOrdered(ctx context.Context, operation string, q store.Query) ([]store.Document, error) {
	docs, err := r.store.Find(ctx, q)
	if err == nil {
		return docs, nil
	}
	if !errors.Is(err, store.ErrIndexUnavailable) {
		return nil, err
	}

	logging.FromContext(ctx).LogWarnf(operation, "ordered query unavailable, sorting in memory: %v", err)
	metrics.RecordDegraded(metrics.DegradedIndexFallback)

	unordered := q
	unordered.OrderBy = ""
	unordered.Limit = 0
	all, err := r.store.Find(ctx, unordered)
	if err != nil {
		return nil, err
	}

	docs = all[:0]
	for _, d := range all {
		if _, ok := d.Data[q.OrderBy]; ok {
			docs = append(docs, d)
		}
	}
	store.SortDocuments(docs, q.OrderBy, q.Direction)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	return docs, nil
}
