package orchestrator

import "github.com/duskline/reconforge/internal/reconerr"

// PerProviderStatus reports how a single provider's unit resolved,
// including the supplemented attempt-count breakdown (SPEC_FULL.md §4
// supplemented feature 4) so a caller can distinguish one permanent
// failure from three exhausted transient retries.
type PerProviderStatus struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"` // "success", "cache_hit", "skipped", "failed"
	Kind     reconerr.Kind `json:"kind,omitempty"`
	Attempts int           `json:"attempts"`
	Message  string        `json:"message,omitempty"`
}

const (
	OutcomeSuccess  = "success"
	OutcomeCacheHit = "cache_hit"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)

// Metadata is the egress metadata block described in §6.2, enriched
// with the confidence score and cache-hit accounting from
// SPEC_FULL.md's supplemented features.
type Metadata struct {
	ScanID            string              `json:"scan_id"`
	Target            string              `json:"target"`
	ElapsedMS         int64               `json:"elapsed_ms"`
	ProvidersAttempted int                `json:"providers_attempted"`
	ProvidersSucceeded int                `json:"providers_succeeded"`
	CacheHits         int                 `json:"cache_hits"`
	Confidence        float64             `json:"confidence"`
	PerProviderStatus []PerProviderStatus `json:"per_provider_status"`
}

// computeConfidence implements the Python original's fusion.py
// compute_confidence: succeeded/attempted, clamped to [0,1]. Zero
// attempted providers (e.g. an unsupported target type) reports zero
// confidence rather than dividing by zero.
func computeConfidence(succeeded, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	c := float64(succeeded) / float64(attempted)
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
