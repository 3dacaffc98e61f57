package storage

import (
	"context"
	"path"
	"strings"
)

// ObjectStorage captures the S3-compatible operations the planner needs.
type ObjectStorage interface {
	UploadFile(ctx context.Context, key, localPath, contentType string) error
}

// ObjectKey joins a configured prefix and a file name into an object key.
func ObjectKey(prefix, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
