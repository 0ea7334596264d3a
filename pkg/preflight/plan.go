package preflight

// Plan selects which checks a validation run performs.
type Plan struct {
	SourceAccessible   bool
	TargetAccessible   bool
	TargetWriteable    bool
	PathNesting        bool
	EnsureTargetExists bool

	// Global Flags
	DryRun bool
}
