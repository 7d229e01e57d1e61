package engine

import "github.com/driftcore/engine/pkg/metrics"

// NewMetricsSink wraps next (the host's real EventSink, or nil) with a
// Prometheus-recording decorator, so every record the engine emits also
// updates the fills/liquidations/funding/oracle-rejection counters and
// gauges in pkg/metrics before reaching the host's own sink. Hosts that
// want scrape-ready metrics alongside persistence set Ctx.Sink to the
// result of this call instead of their own sink directly.
func NewMetricsSink(next EventSink) EventSink {
	return metrics.New(next)
}
