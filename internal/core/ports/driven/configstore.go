package driven

// ConfigStore persists coachkb settings as dotted keys ("chunk.size",
// "retrieval.caps.per_source"). Typed getters return the zero value for a
// missing key or a value of another type; SettingsService fills in defaults.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string

	// GetInt accepts any integer encoding the backing format produces.
	GetInt(key string) int

	// GetFloat widens integers.
	GetFloat(key string) float64

	GetBool(key string) bool

	// GetStringSlice drops non-string elements.
	GetStringSlice(key string) []string

	// Set stores a value. File-backed stores write it through immediately.
	Set(key string, value any) error

	Save() error

	Load() error

	// Path is where the settings live, or ":memory:".
	Path() string
}
