// Package metrics exposes the engine's event stream as Prometheus
// counters and gauges, registered once per process.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/driftcore/engine/pkg/events"
)

type registry struct {
	fillsTotal         *prometheus.CounterVec
	takerFeeTotal      prometheus.Counter
	liquidationsTotal  *prometheus.CounterVec
	bankruptciesTotal  *prometheus.CounterVec
	fundingTicksTotal  prometheus.Counter
	fundingRate        *prometheus.GaugeVec
	repegCostTotal     prometheus.Counter
	oracleInvalidTotal *prometheus.CounterVec
}

var (
	once   sync.Once
	shared *registry
	mu     sync.Mutex
)

func defaultRegistry() *registry {
	once.Do(func() {
		shared = &registry{
			fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "fills_total",
				Help:      "Total perp/spot fills, labeled by fulfillment path.",
			}, []string{"path"}),
			takerFeeTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "taker_fee_total",
				Help:      "Cumulative taker fee collected, in quote precision units.",
			}),
			liquidationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "liquidations_total",
				Help:      "Total liquidation events, labeled by liquidation type.",
			}, []string{"type"}),
			bankruptciesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "bankruptcies_total",
				Help:      "Total bankruptcy resolutions, labeled by perp/spot.",
			}, []string{"type"}),
			fundingTicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "funding_ticks_total",
				Help:      "Total funding-rate ticks processed.",
			}),
			fundingRate: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "funding_rate",
				Help:      "Most recent funding rate per market, in funding-rate precision units.",
			}, []string{"market"}),
			repegCostTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "repeg_cost_total",
				Help:      "Cumulative signed repeg cost debited from fee pools.",
			}),
			oracleInvalidTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "driftcore",
				Subsystem: "engine",
				Name:      "oracle_invalid_total",
				Help:      "Total oracle validity-check rejections, labeled by consuming action.",
			}, []string{"action"}),
		}
		prometheus.MustRegister(
			shared.fillsTotal,
			shared.takerFeeTotal,
			shared.liquidationsTotal,
			shared.bankruptciesTotal,
			shared.fundingTicksTotal,
			shared.fundingRate,
			shared.repegCostTotal,
			shared.oracleInvalidTotal,
		)
	})
	return shared
}

// Sink wraps another events.Sink, recording Prometheus metrics for every
// record it observes before forwarding to the wrapped sink. Use it as the
// engine's EventSink when the host wants both persistence (via LogSink or
// a custom Sink) and scrape-ready metrics.
type Sink struct {
	next events.Sink
	reg  *registry
}

// New wraps next (which may be nil) with a metrics-recording decorator.
// Metrics are registered against the default Prometheus registry exactly
// once per process, regardless of how many Sink values are constructed.
func New(next events.Sink) *Sink {
	return &Sink{next: next, reg: defaultRegistry()}
}

func (s *Sink) Emit(record any) {
	s.observe(record)
	if s.next != nil {
		s.next.Emit(record)
	}
}

func (s *Sink) observe(record any) {
	mu.Lock()
	defer mu.Unlock()

	switch r := record.(type) {
	case events.OrderActionRecord:
		if r.Action == events.ActionFill {
			s.reg.fillsTotal.WithLabelValues(fillPathLabel(r.ActionExplanation)).Inc()
			if r.TakerFee != nil {
				s.reg.takerFeeTotal.Add(float64(*r.TakerFee))
			}
		}
	case events.LiquidationRecord:
		s.reg.liquidationsTotal.WithLabelValues(liquidationTypeLabel(r.LiquidationType)).Inc()
		if r.LiquidationType == events.LiquidationTypePerpBankruptcy {
			s.reg.bankruptciesTotal.WithLabelValues("perp").Inc()
		}
		if r.LiquidationType == events.LiquidationTypeSpotBankruptcy {
			s.reg.bankruptciesTotal.WithLabelValues("spot").Inc()
		}
	case events.FundingRateRecord:
		s.reg.fundingTicksTotal.Inc()
		s.reg.fundingRate.WithLabelValues(marketLabel(r.MarketIndex)).Set(float64(r.FundingRate))
	case events.CurveRecord:
		s.reg.repegCostTotal.Add(float64(r.AdjustmentCost))
	}
}

// RecordOracleInvalid lets a validity-gated call site (fill, settle,
// trigger) note a rejection even though it never reaches Sink.Emit; the
// caller passes the action name it checked against.
func RecordOracleInvalid(action string) {
	defaultRegistry().oracleInvalidTotal.WithLabelValues(action).Inc()
}

func liquidationTypeLabel(t events.LiquidationType) string {
	switch t {
	case events.LiquidationTypePerp:
		return "perp"
	case events.LiquidationTypeSpot:
		return "spot"
	case events.LiquidationTypeBorrowForPerpPnl:
		return "borrow_for_perp_pnl"
	case events.LiquidationTypePerpPnlForDeposit:
		return "perp_pnl_for_deposit"
	case events.LiquidationTypePerpBankruptcy:
		return "perp_bankruptcy"
	case events.LiquidationTypeSpotBankruptcy:
		return "spot_bankruptcy"
	default:
		return "unknown"
	}
}

func marketLabel(marketIndex uint16) string {
	return strconv.FormatUint(uint64(marketIndex), 10)
}

func fillPathLabel(exp events.OrderActionExplanation) string {
	switch exp {
	case events.ExplainOrderFilledWithAmm:
		return "amm"
	case events.ExplainOrderFilledWithMatch:
		return "match"
	case events.ExplainOrderFilledWithExternalMarket:
		return "external"
	case events.ExplainMarketOrderFilled:
		return "market"
	default:
		return "other"
	}
}
