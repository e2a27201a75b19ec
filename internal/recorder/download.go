package recorder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/facetrack/internal/media"
)

// DirDownloader is a Sink that writes artifacts into a directory as
// face-recording.<ext>, replacing any previous download.
type DirDownloader struct {
	Dir string
}

// Deliver implements Sink.
func (d DirDownloader) Deliver(ctx context.Context, artifact *media.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return fmt.Errorf("create download dir: %w", err)
	}

	path := filepath.Join(d.Dir, artifact.Filename())
	if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Path returns where an artifact with the given extension is written.
func (d DirDownloader) Path(ext string) string {
	return filepath.Join(d.Dir, (&media.Artifact{Extension: ext}).Filename())
}
