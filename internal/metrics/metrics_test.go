package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveProviderOutcome_IncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(ProviderOutcomes.WithLabelValues("dns", "success"))
	ObserveProviderOutcome("dns", "success", 10*time.Millisecond)
	after := testutil.ToFloat64(ProviderOutcomes.WithLabelValues("dns", "success"))

	assert.Equal(t, before+1, after)
}

func TestObserveRateLimitWait_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		ObserveRateLimitWait("whois", 5*time.Millisecond)
	})
}
