package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boyski/audited-objects/pkg/shop"
)

func TestObserveVerdictIncrementsLabeledCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := New(reg)
	require.NoError(t, err)

	tel.ObserveVerdict(shop.Recycled)
	tel.ObserveVerdict(shop.Recycled)
	tel.ObserveVerdict(shop.MustRun)

	assert.Equal(t, float64(2), testutil.ToFloat64(tel.verdicts.WithLabelValues("RECYCLED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(tel.verdicts.WithLabelValues("MUSTRUN")))
}

func TestDcodeHitRatio(t *testing.T) {
	reg := prometheus.NewRegistry()
	tel, err := New(reg)
	require.NoError(t, err)

	assert.Equal(t, float64(0), tel.DcodeHitRatio())

	tel.ObserveDcodeCache(true)
	tel.ObserveDcodeCache(true)
	tel.ObserveDcodeCache(false)

	assert.InDelta(t, 2.0/3.0, tel.DcodeHitRatio(), 1e-9)
}

func TestNilTelemetryMethodsAreNoops(t *testing.T) {
	var tel *Telemetry
	assert.NotPanics(t, func() {
		tel.ObserveVerdict(shop.Recycled)
		tel.ObserveEliminationDepth(3)
		tel.ObserveDcodeCache(true)
		_ = tel.DcodeHitRatio()
	})
}
