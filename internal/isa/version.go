package isa

// Version constants for the instruction set and engine.
const (
	// ISAVersion is the instruction-set schema version.
	ISAVersion = "1"

	// EngineVersion is the SCRAWL engine version.
	EngineVersion = "0.3.0"
)
