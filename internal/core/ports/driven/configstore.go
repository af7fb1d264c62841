package driven

// ConfigStore holds flat, dot-separated configuration keys such as
// "canvas.max_history" or "storage.backend".
//
// Getters convert between the scalar shapes a config file produces: an
// integer may arrive as int64 or a whole float, a duration as its string
// form. A store may layer read-only overrides (environment variables) on
// top of the persisted values; overrides are never written back.
type ConfigStore interface {
	// Get returns the raw value of key and whether it is set.
	Get(key string) (any, bool)

	// GetString returns key as a string, or "" when unset.
	GetString(key string) string

	// GetInt returns key as an int, or 0 when unset or not numeric.
	GetInt(key string) int

	// GetBool returns key as a bool, or false when unset.
	GetBool(key string) bool

	// GetStringSlice returns key as a string slice, or nil when unset.
	GetStringSlice(key string) []string

	// Set stores one value and persists it.
	Set(key string, value any) error

	// SetMany stores all values and persists them together. On failure
	// none of them are kept.
	SetMany(values map[string]any) error

	Save() error
	Load() error

	// Path returns where the configuration is persisted.
	Path() string
}
