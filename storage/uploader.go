package storage

import "context"

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// SnapshotUploader publishes JSON snapshots of bracket graphs so external
// consumers (dashboards, archival) can fetch them without hitting the API.
type SnapshotUploader interface {
	UploadSnapshot(ctx context.Context, key string, snapshot interface{}) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	PublicURL(key string) string
}
