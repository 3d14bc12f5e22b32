package engine

// Config tunes coordinator behavior.
type Config struct {
	// RequestMissingOnly requests only the not-yet-granted subset instead
	// of the full declared set. The default re-requests the full set:
	// re-asking for an already-granted capability is harmless and keeps
	// result reporting uniform.
	RequestMissingOnly bool
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{}
}
