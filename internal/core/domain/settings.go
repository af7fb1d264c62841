package domain

import "time"

const unknownDescription = "Unknown"

// StorageBackend selects where project snapshots are persisted.
type StorageBackend string

// Available storage backends.
const (
	// StorageFile stores one JSON file per project.
	StorageFile StorageBackend = "file"

	// StorageSQLite stores snapshots in a single SQLite database.
	StorageSQLite StorageBackend = "sqlite"

	// StorageMemory keeps snapshots in process memory only.
	StorageMemory StorageBackend = "memory"
)

// IsValid returns true if the storage backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageFile, StorageSQLite, StorageMemory:
		return true
	default:
		return false
	}
}

// IsDurable returns true if snapshots survive a restart.
func (b StorageBackend) IsDurable() bool {
	return b == StorageFile || b == StorageSQLite
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StorageBackend) Description() string {
	switch b {
	case StorageFile:
		return "File (one JSON document per project)"
	case StorageSQLite:
		return "SQLite (single database file)"
	case StorageMemory:
		return "Memory (not persisted)"
	default:
		return unknownDescription
	}
}

// CodecName selects the history compaction codec.
type CodecName string

// Available compaction codecs.
const (
	// CodecNone disables history compaction.
	CodecNone CodecName = "none"

	// CodecZstd compresses old history entries with zstd.
	CodecZstd CodecName = "zstd"

	// CodecS2 compresses old history entries with S2 (faster, larger).
	CodecS2 CodecName = "s2"
)

// IsValid returns true if the codec is recognised.
func (c CodecName) IsValid() bool {
	switch c {
	case CodecNone, CodecZstd, CodecS2:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c CodecName) String() string {
	return string(c)
}

// Description returns a human-readable description of the codec.
func (c CodecName) Description() string {
	switch c {
	case CodecNone:
		return "None (history kept uncompressed)"
	case CodecZstd:
		return "Zstandard (best ratio)"
	case CodecS2:
		return "S2 (fastest)"
	default:
		return unknownDescription
	}
}

// CanvasSettings holds the tunables of the canvas document store.
type CanvasSettings struct {
	// ZMax is the highest allowed node zIndex.
	ZMax int `validate:"min=1"`

	// MaxHistory bounds the undo/redo stack.
	MaxHistory int `validate:"min=1,max=1000"`

	// HistoryThrottle coalesces mutation bursts into one history entry.
	HistoryThrottle time.Duration `validate:"min=0"`

	// SaveDebounce delays persistence after the last mutation.
	SaveDebounce time.Duration `validate:"min=0"`

	// AutosaveSettle is how long autosave stays off after a load or restore.
	AutosaveSettle time.Duration `validate:"min=0"`

	// SaveRetryLimit bounds consecutive rescheduled saves after failures.
	SaveRetryLimit int `validate:"min=0"`

	// VisibilityBump is how long a single mutation suppresses culling.
	VisibilityBump time.Duration `validate:"min=0"`

	// VisibilityRelease delays re-enabling culling once the count hits zero.
	VisibilityRelease time.Duration `validate:"min=0"`

	// CompactionRetention is how many recent entries stay uncompressed.
	CompactionRetention int `validate:"min=1"`

	// DuplicateOffset is added to a node's position when duplicating.
	DuplicateOffset Position

	// SizeAffectingFields are data keys whose change may resize a node.
	SizeAffectingFields []string
}

// IsSizeAffecting returns true if key is one of the size-affecting fields.
func (s CanvasSettings) IsSizeAffecting(key string) bool {
	for _, f := range s.SizeAffectingFields {
		if f == key {
			return true
		}
	}
	return false
}

// StorageSettings configures snapshot persistence.
type StorageSettings struct {
	// Backend is the project store implementation.
	Backend StorageBackend

	// DataDir is where durable backends keep their files.
	// Empty means ~/.nexus/data.
	DataDir string

	// WriteBehind routes saves through the coalescing write queue.
	WriteBehind bool
}

// HistorySettings configures history compaction.
type HistorySettings struct {
	// Codec is the compaction codec; CodecNone disables compaction.
	Codec CodecName
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Canvas holds document store tunables.
	Canvas CanvasSettings

	// Storage holds persistence settings.
	Storage StorageSettings

	// History holds compaction settings.
	History HistorySettings
}

// DefaultCanvasSettings returns the store tunables used when nothing is configured.
func DefaultCanvasSettings() CanvasSettings {
	return CanvasSettings{
		ZMax:                9999,
		MaxHistory:          50,
		HistoryThrottle:     300 * time.Millisecond,
		SaveDebounce:        650 * time.Millisecond,
		AutosaveSettle:      200 * time.Millisecond,
		SaveRetryLimit:      5,
		VisibilityBump:      300 * time.Millisecond,
		VisibilityRelease:   150 * time.Millisecond,
		CompactionRetention: 10,
		DuplicateOffset:     Position{X: 30, Y: 30},
		SizeAffectingFields: []string{DataKeyContent, DataKeyURL, "width", "height", DataKeyLabel},
	}
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Canvas: DefaultCanvasSettings(),
		Storage: StorageSettings{
			Backend:     StorageFile,
			WriteBehind: true,
		},
		History: HistorySettings{
			Codec: CodecZstd,
		},
	}
}

// AllStorageBackends returns all available storage backends.
func AllStorageBackends() []StorageBackend {
	return []StorageBackend{StorageFile, StorageSQLite, StorageMemory}
}

// AllCodecs returns all available compaction codecs.
func AllCodecs() []CodecName {
	return []CodecName{CodecNone, CodecZstd, CodecS2}
}
