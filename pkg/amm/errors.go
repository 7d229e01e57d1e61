package amm

import "errors"

// Kept as two distinct sentinels rather than aliased: a repeg that
// moves price the wrong
// way relative to the oracle is a profitability violation, while a repeg
// that moves price outside the oracle ± confidence band is a price-impact
// violation. Conflating them would hide which rail tripped.
var (
	ErrInvalidRepegProfitability = errors.New("amm: repeg would move price away from oracle")
	ErrPriceImpactInvalid        = errors.New("amm: repeg would move price outside oracle confidence band")
	ErrKTooSmall                 = errors.New("amm: new sqrt_k below LP-share safety bound")
	ErrTradeTooSmall             = errors.New("amm: trade size too small to move price")
)
