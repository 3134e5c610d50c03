package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLifecycle_CountsOperations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewLifecycle(reg)

	m.ObserveOperation("approve", "ok")
	m.ObserveOperation("approve", "ok")
	m.ObserveOperation("approve", "ALREADY_APPROVED")
	m.ObserveReferenceRetry("amendment_reference")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("approve", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("approve", "ALREADY_APPROVED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.referenceRetries.WithLabelValues("amendment_reference")))
}

func TestLifecycle_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Lifecycle
	m.ObserveOperation("approve", "ok")
	m.ObserveReferenceRetry("form_code")
	m.SetPending("amendments", 3)
}
