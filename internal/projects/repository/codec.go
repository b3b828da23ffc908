package repository

import (
	"time"

	"github.com/exteriorai/exteriorai-backend/internal/projects/domain"
	"github.com/exteriorai/exteriorai-backend/internal/store"
)

// Document field names.
const (
	fieldUserID          = "userId"
	fieldName            = "name"
	fieldType            = "type"
	fieldStatus          = "status"
	fieldStylePreference = "stylePreference"
	fieldTransformations = "transformations"
	fieldThumbnail       = "thumbnail"
	fieldCreatedAt       = "createdAt"
	fieldUpdatedAt       = "updatedAt"

	fieldImageURL         = "imageUrl"
	fieldPreviousImageURL = "previousImageUrl"
	fieldPrompt           = "prompt"
	fieldTimestamp        = "timestamp"

	fieldAction      = "action"
	fieldProjectID   = "projectId"
	fieldProjectName = "projectName"
)

func projectFromDoc(doc store.Document) domain.Project {
	d := doc.Data
	return domain.Project{
		ID:              doc.ID,
		OwnerID:         asString(d[fieldUserID]),
		Name:            asString(d[fieldName]),
		Type:            domain.ProjectType(asString(d[fieldType])),
		Status:          domain.Status(asString(d[fieldStatus])),
		StylePreference: asInt(d[fieldStylePreference]),
		Transformations: asInt(d[fieldTransformations]),
		Thumbnail:       asString(d[fieldThumbnail]),
		CreatedAt:       asTime(d[fieldCreatedAt]),
		UpdatedAt:       asTime(d[fieldUpdatedAt]),
	}
}

func transformationFromDoc(doc store.Document) domain.TransformationRecord {
	d := doc.Data
	return domain.TransformationRecord{
		ID:               doc.ID,
		ImageURL:         asString(d[fieldImageURL]),
		PreviousImageURL: asString(d[fieldPreviousImageURL]),
		Prompt:           asString(d[fieldPrompt]),
		Timestamp:        asTime(d[fieldTimestamp]),
	}
}

func activityFromDoc(doc store.Document) domain.ActivityLog {
	d := doc.Data
	return domain.ActivityLog{
		ID:          doc.ID,
		UserID:      asString(d[fieldUserID]),
		Action:      asString(d[fieldAction]),
		ProjectID:   asString(d[fieldProjectID]),
		ProjectName: asString(d[fieldProjectName]),
		Timestamp:   asTime(d[fieldTimestamp]),
	}
}

func updateFields(u domain.ProjectUpdate) map[string]any {
	fields := map[string]any{fieldUpdatedAt: store.ServerTimestamp}
	if u.Name != nil {
		fields[fieldName] = *u.Name
	}
	if u.Type != nil {
		fields[fieldType] = string(*u.Type)
	}
	if u.Status != nil {
		fields[fieldStatus] = string(*u.Status)
	}
	if u.StylePreference != nil {
		fields[fieldStylePreference] = int64(*u.StylePreference)
	}
	if u.Transformations != nil {
		fields[fieldTransformations] = int64(*u.Transformations)
	}
	if u.Thumbnail != nil {
		fields[fieldThumbnail] = *u.Thumbnail
	}
	return fields
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// Firestore returns integers as int64, the memory store as written.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}
