package ir

// Version constants for the package schema and engine.
const (
	// SchemaVersion is the package document schema version.
	SchemaVersion = "1"

	// EngineVersion is the sid engine version.
	EngineVersion = "0.1.0"
)
