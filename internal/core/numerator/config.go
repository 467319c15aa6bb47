// Package numerator provides domain contracts for human-readable reference numbers.
package numerator

// Reset periods understood by implementations.
const (
	ResetYear  = "year"
	ResetMonth = "month"
	ResetNever = "never"
)

// Config holds numbering configuration.
type Config struct {
	// Prefix printed at the start of every number (e.g., "PUR", "VEH")
	Prefix string

	// Scope selects the counter. Numbers sharing a scope share one sequence
	// even when their prefixes differ. Empty scope falls back to Prefix.
	Scope string

	// IncludeYear adds year to the number
	IncludeYear bool

	// PadWidth is the minimum number width (default 5)
	PadWidth int

	// ResetPeriod: "year", "month", "never"
	ResetPeriod string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		IncludeYear: true,
		PadWidth:    5,
		ResetPeriod: ResetYear,
	}
}

// ScopedConfig returns defaults with a shared counter scope.
func ScopedConfig(scope, prefix string) Config {
	cfg := DefaultConfig(prefix)
	cfg.Scope = scope
	return cfg
}
