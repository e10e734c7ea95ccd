package output

import "time"

// ConfigPort reads settings from the environment. Unset or unparsable values
// fall back to the given default.
type ConfigPort interface {
	Lookup(key string) (string, bool)
	GetWithDefault(key string, defaultValue string) string
	GetBool(key string, defaultValue bool) bool
	GetInt(key string, defaultValue int) int
	GetFloat(key string, defaultValue float64) float64
	GetDuration(key string, defaultValue time.Duration) time.Duration
}
