package media

import (
	"strings"
	"time"
)

// RecordingBaseName is the file name, without extension, offered for downloads.
const RecordingBaseName = "face-recording"

// Artifact is a finalised recording: the concatenation of every encoded
// fragment tagged with its container type.
type Artifact struct {
	Data      []byte
	MIMEType  string
	Extension string
	CreatedAt time.Time
}

// Concat joins fragments, in order, into a single artifact.
func Concat(fragments [][]byte, mimeType, ext string) *Artifact {
	size := 0
	for _, f := range fragments {
		size += len(f)
	}

	data := make([]byte, 0, size)
	for _, f := range fragments {
		data = append(data, f...)
	}

	return &Artifact{
		Data:      data,
		MIMEType:  mimeType,
		Extension: strings.TrimPrefix(ext, "."),
		CreatedAt: time.Now(),
	}
}

// Size returns the artifact length in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Data)
}

// Filename returns the download name, e.g. "face-recording.webm".
func (a *Artifact) Filename() string {
	if a == nil || a.Extension == "" {
		return RecordingBaseName
	}
	return RecordingBaseName + "." + a.Extension
}
