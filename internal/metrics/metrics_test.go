package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveTurn(t *testing.T) {
	before := testutil.ToFloat64(TurnsTotal.WithLabelValues("start", "complete"))
	ObserveTurn("start", "complete", 120*time.Millisecond)
	after := testutil.ToFloat64(TurnsTotal.WithLabelValues("start", "complete"))
	assert.Equal(t, before+1, after)
	assert.Positive(t, testutil.CollectAndCount(TurnDuration))
}
