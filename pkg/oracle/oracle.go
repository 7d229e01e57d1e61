// Package oracle implements the price-feed aggregator of:
// normalizing heterogeneous feed precisions into PRICE_PRECISION, running
// validity checks against a ValidityGuardRails, and computing a signed
// multi-oracle median for consensus-style submissions.
package oracle

import (
	"crypto/ed25519"
	"sort"

	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/fixedpoint"
	"github.com/driftcore/engine/params"
)

// PriceData is the normalized reading every oracle source produces,
// regardless of its native precision or delivery mechanism.
type PriceData struct {
	Price               int64 // PRICE_PRECISION
	Confidence          uint64
	DelaySlots           int64
	HasSufficientData   bool

	// Twaps, carried when the source maintains its own (used by the
	// too-volatile check and by FillOrderAmm/UpdateTwap consumers).
	Twap int64
}

// Source identifies the feed mechanism a PriceData came from.
type Source int8

const (
	SourcePyth Source = iota
	SourcePythPull
	SourceSwitchboard
	SourceQuoteAsset
	SourcePrelaunch
)

// Action is the consumer context a validity check is performed for
//: each action has its own table of acceptable Validity
// results.
type Action int8

const (
	ActionUpdateTwap Action = iota
	ActionUpdateAMMCurve
	ActionFillOrderAmm
	ActionFillOrderMatch
	ActionSettlePnl
	ActionMarginCalc
	ActionTriggerOrder
	ActionLiquidate
)

// Validity is the outcome of checking a PriceData against guard rails.
type Validity int8

const (
	Valid Validity = iota
	TooVolatile
	StaleForAmm
	StaleForMargin
	InsufficientDataPoints
	NonPositive
	Invalid
)

// allowedTable[action] lists every Validity the action tolerates. Stale-for-
// margin paths (settle/margin/liquidate/trigger) are strictest; AMM-curve
// updates tolerate staleness since they only move the mark, not settle cash.
var allowedTable = map[Action]map[Validity]bool{
	ActionUpdateTwap:     {Valid: true, StaleForMargin: true},
	ActionUpdateAMMCurve: {Valid: true, StaleForMargin: true},
	ActionFillOrderAmm:   {Valid: true},
	ActionFillOrderMatch: {Valid: true},
	ActionSettlePnl:      {Valid: true},
	ActionMarginCalc:     {Valid: true},
	ActionTriggerOrder:   {Valid: true},
	ActionLiquidate:      {Valid: true},
}

// ScaleToPricePrecision normalizes a feed value published at 10^exponent
// into PRICE_PRECISION (10^6)
func ScaleToPricePrecision(value int64, exponent int32) (int64, error) {
	const target = 6
	shift := target - int(exponent)
	if shift == 0 {
		return value, nil
	}
	if shift > 0 {
		scale, err := fixedpoint.MulU64(1, pow10(uint(shift)))
		if err != nil {
			return 0, err
		}
		if value < 0 {
			v, err := fixedpoint.MulU64(uint64(-value), scale)
			return -int64(v), err
		}
		v, err := fixedpoint.MulU64(uint64(value), scale)
		return int64(v), err
	}
	scale := pow10(uint(-shift))
	neg := value < 0
	abs := value
	if neg {
		abs = -value
	}
	out := abs / int64(scale)
	if neg {
		out = -out
	}
	return out, nil
}

func pow10(n uint) uint64 {
	r := uint64(1)
	for i := uint(0); i < n; i++ {
		r *= 10
	}
	return r
}

// QuoteAssetPrice is the constant 1.0 "oracle" used for quote-denominated
// spot markets.
func QuoteAssetPrice() PriceData {
	return PriceData{
		Price:             fixedpoint.PricePrecision,
		Confidence:        1,
		DelaySlots:        0,
		HasSufficientData: true,
		Twap:              fixedpoint.PricePrecision,
	}
}

// CheckValidity classifies a PriceData for the given action against the
// guard rails. oracleTwap is the engine-maintained oracle TWAP (distinct
// from PriceData.Twap, which may be the source's own internal twap) used
// by the too-volatile check.
func CheckValidity(pd PriceData, oracleTwap int64, rails params.ValidityGuardRails, action Action) Validity {
	if !pd.HasSufficientData {
		return InsufficientDataPoints
	}
	if pd.Price <= 0 {
		return NonPositive
	}

	staleForAmm := pd.DelaySlots > rails.SlotsBeforeStaleForAmm
	staleForMargin := pd.DelaySlots > rails.SlotsBeforeStaleForMargin

	if pd.Confidence > 0 {
		confPct := pd.Confidence * uint64(fixedpoint.PercentagePrecision) / uint64(fixedpoint.AbsI64(pd.Price))
		if confPct > rails.ConfidenceIntervalMaxSize {
			if staleForMargin {
				return StaleForMargin
			}
			return Invalid
		}
	}

	if IsTooVolatile(pd.Price, oracleTwap, rails.TooVolatileRatio) {
		return TooVolatile
	}

	if staleForMargin {
		return StaleForMargin
	}
	if staleForAmm {
		if allowed := allowedTable[action]; allowed != nil && allowed[StaleForAmm] {
			return StaleForAmm
		}
		return StaleForAmm
	}
	return Valid
}

// IsTooVolatile implements the single unified rulethe Open
// Question resolves the legacy two-usage split into:
// max(a,b)/min(a,b) > ratio. Callers pass (current, twap) or (twap,
// current) depending on which ratio their source historically computed;
// the test is symmetric so either order yields the same verdict.
func IsTooVolatile(a, b int64, ratio uint64) bool {
	if a == 0 || b == 0 || ratio == 0 {
		return false
	}
	absA, absB := fixedpoint.AbsI64(a), fixedpoint.AbsI64(b)
	hi, lo := absA, absB
	if lo > hi {
		hi, lo = lo, hi
	}
	if lo == 0 {
		return true
	}
	return uint64(hi) > uint64(lo)*ratio
}

// Allowed reports whether validity v is acceptable for action, per the
// fixed per-action table.
func Allowed(action Action, v Validity) bool {
	if v == Valid {
		return true
	}
	allowed := allowedTable[action]
	return allowed != nil && allowed[v]
}

// ValidityError maps a non-Valid Validity to the matching engerrors
// sentinel, returning nil when v == Valid.
func ValidityError(v Validity) error {
	switch v {
	case Valid:
		return nil
	case TooVolatile:
		return engerrors.ErrOracleTooVolatile
	case StaleForAmm, StaleForMargin:
		return engerrors.ErrOracleStale
	case InsufficientDataPoints:
		return engerrors.ErrOracleInsufficientData
	case NonPositive:
		return engerrors.ErrOracleNonPositive
	default:
		return engerrors.ErrOracleInvalid
	}
}

// --- Multi-oracle signed aggregation ---------------------

// FeedEntry is one signed submission's reading for a single feed.
type FeedEntry struct {
	FeedID          [32]byte
	Value           int64 // PRICE_PRECISION, signed
	MinOracleSamples int
}

// Submission is one oracle's signed message: a slothash commitment plus
// a batch of feed entries, the pull-oracle envelope shape.
type Submission struct {
	OracleID  [32]byte
	SlotHash  [32]byte
	Message   []byte // the exact bytes that were signed
	Signature []byte
	PublicKey ed25519.PublicKey
	Slot      uint64
	Entries   []FeedEntry
}

// SignatureVerifier is the host port used to verify each
// submission. The engine never performs key management itself.
type SignatureVerifier interface {
	VerifyEd25519(pubkey, message, signature []byte) bool
}

// StdlibVerifier is the default SignatureVerifier, using crypto/ed25519
// directly.
type StdlibVerifier struct{}

func (StdlibVerifier) VerifyEd25519(pubkey, message, signature []byte) bool {
	if len(pubkey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubkey), message, signature)
}

// AggregateResult is the median value accepted for one feed, or false if
// fewer than min_samples valid submissions existed within maxStalenessSlots.
type AggregateResult struct {
	Value     int64
	NumSamples int
	Available bool
}

// Aggregate verifies each submission, deduplicates by OracleID, and returns
// the median per feed ID. currentSlot and maxStalenessSlots bound which
// submissions are considered fresh enough to count.
func Aggregate(subs []Submission, verifier SignatureVerifier, currentSlot uint64, maxStalenessSlots uint64) map[[32]byte]AggregateResult {
	seenOracle := make(map[[32]byte]bool)
	valuesByFeed := make(map[[32]byte][]int64)
	minSamplesByFeed := make(map[[32]byte]int)

	for _, s := range subs {
		if seenOracle[s.OracleID] {
			continue // dedup by oracle identity
		}
		if currentSlot >= s.Slot && currentSlot-s.Slot > maxStalenessSlots {
			continue
		}
		if !verifier.VerifyEd25519(s.PublicKey, s.Message, s.Signature) {
			continue
		}
		seenOracle[s.OracleID] = true
		for _, e := range s.Entries {
			valuesByFeed[e.FeedID] = append(valuesByFeed[e.FeedID], e.Value)
			if e.MinOracleSamples > minSamplesByFeed[e.FeedID] {
				minSamplesByFeed[e.FeedID] = e.MinOracleSamples
			}
		}
	}

	out := make(map[[32]byte]AggregateResult, len(valuesByFeed))
	for feedID, values := range valuesByFeed {
		minSamples := minSamplesByFeed[feedID]
		if minSamples == 0 {
			minSamples = 1
		}
		if len(values) < minSamples {
			out[feedID] = AggregateResult{NumSamples: len(values), Available: false}
			continue
		}
		out[feedID] = AggregateResult{
			Value:      Median(values),
			NumSamples: len(values),
			Available:  true,
		}
	}
	return out
}

// Median returns the median of a non-empty slice of PRICE_PRECISION
// values without mutating the caller's slice.
func Median(values []int64) int64 {
	cp := make([]int64, len(values))
	copy(cp, values)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	// Even count: average the two middle values (floor toward negative
	// infinity is acceptable here since oracle prices are expected positive).
	return (cp[n/2-1] + cp[n/2]) / 2
}

// Mean returns the arithmetic mean of values (used by TWAP bootstrapping).
func Mean(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	var sum int64
	for _, v := range values {
		sum += v
	}
	return sum / int64(len(values))
}

// StdDev returns the population standard deviation of values, used by the
// spread engine's mark_std input.
func StdDev(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	var sumSq int64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return int64(fixedpoint.SqrtU64(uint64(sumSq / int64(len(values)))))
}

// UpdateTwap folds a new sample into an existing time-weighted average
// over a window, the same recurrence used for last_mark_price_twap,
// last_bid_price_twap, etc.
func UpdateTwap(oldTwap, newSample int64, sinceLastUpdate, window int64) int64 {
	if window <= 0 {
		return newSample
	}
	if sinceLastUpdate >= window {
		return newSample
	}
	fromOld := oldTwap * (window - sinceLastUpdate)
	fromNew := newSample * sinceLastUpdate
	return (fromOld + fromNew) / window
}

// PrelaunchOracle derives a synthetic OraclePriceData from the AMM's own
// mark-TWAP for markets with no external feed yet.
func PrelaunchOracle(markTwap int64) PriceData {
	return PriceData{
		Price:             markTwap,
		Confidence:        0,
		DelaySlots:        0,
		HasSufficientData: true,
		Twap:              markTwap,
	}
}
