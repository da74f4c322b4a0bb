package gcsuploader

import (
	"context"
	"io"
)

// ObjectOpener opens a cloud storage object for reading. The batch importer
// depends on this interface so tests can run without GCS.
type ObjectOpener interface {
	// OpenObject opens the object named by a gs://bucket/object URI.
	OpenObject(ctx context.Context, gcsURI string) (io.ReadCloser, error)
}
