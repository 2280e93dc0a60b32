package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_ObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ObserveRun("object_detection", "success", 150*time.Millisecond)
	r.ObserveRun("object_detection", "success", 50*time.Millisecond)
	r.ObserveRun("object_detection", "runtime", time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("object_detection", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("object_detection", "runtime")))
	require.Equal(t, 1, testutil.CollectAndCount(r.runDuration))
}

func TestRecorder_IncEvent(t *testing.T) {
	r := NewRecorder(prometheus.NewRegistry())
	r.IncEvent("start")
	r.IncEvent("start")
	r.IncEvent("cancel")

	require.Equal(t, 2.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("start")))
	require.Equal(t, 1.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("cancel")))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserveRun("x", "success", time.Second)
		r.IncEvent("start")
	})
}
