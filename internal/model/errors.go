package model

import "errors"

// Error taxonomy for the detection pipeline. None of these are fatal to a
// request: identity and registry failures are absorbed with a fallback, and
// per-KPI failures are isolated and reported as diagnostics.
var (
	// ErrResolutionFallback means no profile matched and the default context was used.
	ErrResolutionFallback = errors.New("resolution fallback: no profile matched, default context used")
	// ErrSelectionEmpty means no KPI applies to the effective process set.
	ErrSelectionEmpty = errors.New("selection empty: no kpi applies to the requested processes")
	// ErrMeasurementUnavailable means the measurement call for a KPI failed or timed out.
	ErrMeasurementUnavailable = errors.New("measurement unavailable")
	// ErrRegistryUnavailable means the registry provider failed and built-in defaults are in use.
	ErrRegistryUnavailable = errors.New("registry unavailable: built-in defaults in use")
	// ErrInvalidThresholdConfig means a KPI threshold row is missing or malformed.
	ErrInvalidThresholdConfig = errors.New("invalid threshold configuration")
)

// DiagnosticKind classifies a non-fatal condition reported alongside results.
type DiagnosticKind string

const (
	DiagResolutionFallback     DiagnosticKind = "resolution_fallback"
	DiagLowConfidenceMatch     DiagnosticKind = "low_confidence_match"
	DiagSelectionEmpty         DiagnosticKind = "selection_empty"
	DiagMeasurementUnavailable DiagnosticKind = "measurement_unavailable"
	DiagRegistryUnavailable    DiagnosticKind = "registry_unavailable"
	DiagInvalidThresholdConfig DiagnosticKind = "invalid_threshold_config"
	DiagUnmappedProcess        DiagnosticKind = "unmapped_process"
	DiagInternal               DiagnosticKind = "internal"
)

// Diagnostic explains why a result is partial, degraded, or empty.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	KPI     string         `json:"kpi,omitempty"`
	Message string         `json:"message"`
}

// DiagnosticFromError maps a taxonomy error to a diagnostic. Errors outside
// the taxonomy map to DiagInternal.
func DiagnosticFromError(err error, kpi string) Diagnostic {
	kind := DiagInternal
	switch {
	case errors.Is(err, ErrResolutionFallback):
		kind = DiagResolutionFallback
	case errors.Is(err, ErrSelectionEmpty):
		kind = DiagSelectionEmpty
	case errors.Is(err, ErrMeasurementUnavailable):
		kind = DiagMeasurementUnavailable
	case errors.Is(err, ErrRegistryUnavailable):
		kind = DiagRegistryUnavailable
	case errors.Is(err, ErrInvalidThresholdConfig):
		kind = DiagInvalidThresholdConfig
	}
	return Diagnostic{Kind: kind, KPI: kpi, Message: err.Error()}
}
