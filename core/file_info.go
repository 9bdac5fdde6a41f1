package core

import (
	"maps"
	"slices"
	"time"
)

// FileInfo is the persisted state of one resumable upload.
type FileInfo struct {
	ID string
	// Offset is the number of bytes durably received so far.
	Offset uint64
	// Length is nil while the upload size is deferred.
	Length *uint64
	// Path locates the payload in its storage backend.
	Path         *string
	CreatedAt    time.Time
	DeferredSize bool
	IsPartial    bool
	IsFinal      bool
	// Parts lists the ids of the partial uploads a final upload concatenates, in order.
	Parts []string
	// Storage names the payload backend that owns this upload.
	Storage  string
	Metadata map[string]string
}

func NewFileInfo(id string, length *uint64, path *string, storage string, metadata map[string]string) *FileInfo {
	if metadata == nil {
		metadata = make(map[string]string)
	}

	return &FileInfo{
		ID:           id,
		Length:       length,
		Path:         path,
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		DeferredSize: length == nil,
		Storage:      storage,
		Metadata:     metadata,
	}
}

// Clone returns a deep copy of the info.
func (f *FileInfo) Clone() *FileInfo {
	c := *f
	if f.Length != nil {
		length := *f.Length
		c.Length = &length
	}
	if f.Path != nil {
		path := *f.Path
		c.Path = &path
	}
	c.Parts = slices.Clone(f.Parts)
	c.Metadata = maps.Clone(f.Metadata)
	return &c
}
