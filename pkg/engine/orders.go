package engine

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/driftcore/engine/params"
	"github.com/driftcore/engine/pkg/engerrors"
	"github.com/driftcore/engine/pkg/events"
	"github.com/driftcore/engine/pkg/matching"
	"github.com/driftcore/engine/pkg/order"
	"github.com/driftcore/engine/pkg/storage"
)

// PlacePerpOrderParams is the order-placement request for a perp market.
type PlacePerpOrderParams struct {
	MarketIndex uint16
	order.Order
}

// PlacePerpOrder validates params against the market's tick/step/min-size
// constraints plus the oracle-dependent post-only-crossing and
// oracle-limit-breach checks, and, if accepted, appends the
// order to the user's resting set and emits an OrderRecord. oraclePrice is
// the current slot's oracle reading for this market, PRICE_PRECISION.
func PlacePerpOrder(c *Ctx, addr common.Address, subAccountID uint8, user *storage.UserAccount, market *storage.PerpMarketState, mp order.MarketParams, oraclePrice int64, req PlacePerpOrderParams) (uint32, error) {
	if c.State.ExchangeStatus.Has(params.StatusFillPaused) {
		return 0, engerrors.ErrExchangePaused
	}
	if market.MarketIndex != req.MarketIndex {
		return 0, engerrors.ErrWrongMarketType
	}

	o := req.Order
	o.MarketIndex = req.MarketIndex
	o.MarketType = order.MarketTypePerp
	o.Slot = c.Slot
	o.Status = order.StatusOpen

	mp.OraclePrice = oraclePrice
	mp.MarginRatioInitial = market.MarginRatioInitial
	mp.MarginRatioMaintenance = market.MarginRatioMaintenance
	mp.AmmFillableBase = matching.MaxAmmFillableBase(&market.Curve, o.Direction == order.Long)

	if err := order.Validate(&o, mp); err != nil {
		c.warn("perp order rejected")
		return 0, err
	}

	user.NumberOfOrders++
	o.OrderID = user.NumberOfOrders

	if err := c.Store.SaveOrder(addr, subAccountID, &o); err != nil {
		return 0, err
	}

	c.emit(events.OrderRecord{
		Ts:   c.Now,
		User: addr,
		Order: events.OrderSnapshot{
			OrderID:                o.OrderID,
			MarketIndex:            o.MarketIndex,
			MarketType:             uint8(o.MarketType),
			OrderType:              uint8(o.OrderType),
			Direction:              uint8(o.Direction),
			BaseAssetAmount:        o.BaseAssetAmount,
			BaseAssetAmountFilled:  o.BaseAssetAmountFilled,
			QuoteAssetAmountFilled: o.QuoteAssetAmountFilled,
			Price:                  o.Price,
		},
	})
	return o.OrderID, nil
}

// PlaceSpotOrderParams is the order-placement request for a spot market;
// spot orders share the same validation and placement path as perp
// orders, keyed by MarketTypeSpot.
type PlaceSpotOrderParams struct {
	MarketIndex uint16
	order.Order
}

// PlaceSpotOrder is PlacePerpOrder's spot-market counterpart.
func PlaceSpotOrder(c *Ctx, addr common.Address, subAccountID uint8, user *storage.UserAccount, mp order.MarketParams, req PlaceSpotOrderParams) (uint32, error) {
	if c.State.ExchangeStatus.Has(params.StatusFillPaused) {
		return 0, engerrors.ErrExchangePaused
	}

	o := req.Order
	o.MarketIndex = req.MarketIndex
	o.MarketType = order.MarketTypeSpot
	o.Slot = c.Slot
	o.Status = order.StatusOpen

	if err := order.Validate(&o, mp); err != nil {
		c.warn("spot order rejected")
		return 0, err
	}

	user.NumberOfOrders++
	o.OrderID = user.NumberOfOrders

	if err := c.Store.SaveOrder(addr, subAccountID, &o); err != nil {
		return 0, err
	}

	c.emit(events.OrderRecord{
		Ts:   c.Now,
		User: addr,
		Order: events.OrderSnapshot{
			OrderID:                o.OrderID,
			MarketIndex:            o.MarketIndex,
			MarketType:             uint8(o.MarketType),
			OrderType:              uint8(o.OrderType),
			Direction:              uint8(o.Direction),
			BaseAssetAmount:        o.BaseAssetAmount,
			BaseAssetAmountFilled:  o.BaseAssetAmountFilled,
			QuoteAssetAmountFilled: o.QuoteAssetAmountFilled,
			Price:                  o.Price,
		},
	})
	return o.OrderID, nil
}

// CancelOrder marks a resting order canceled and removes it from the
// store, emitting an ActionCancel record.
func CancelOrder(c *Ctx, addr common.Address, subAccountID uint8, orderID uint32) error {
	o, err := loadOrder(c, addr, subAccountID, orderID)
	if err != nil {
		return err
	}
	o.Status = order.StatusCanceled
	if err := c.Store.DeleteOrder(addr, subAccountID, orderID); err != nil {
		return err
	}
	c.emit(events.OrderActionRecord{
		RecordID:    uuid.New(),
		Ts:          c.Now,
		Action:      events.ActionCancel,
		MarketIndex: o.MarketIndex,
		MarketType:  uint8(o.MarketType),
		Taker:       &addr,
		TakerOrderID: &orderID,
	})
	return nil
}

// TriggerOrder flips a resting TriggerMarket/TriggerLimit order into its
// triggered state once the caller has confirmed trigger_price was
// breached; the engine itself does not read oracle prices here. The
// trigger-condition check belongs to the caller, who already holds the
// validated oracle reading for this slot.
func TriggerOrder(c *Ctx, addr common.Address, subAccountID uint8, orderID uint32) error {
	o, err := loadOrder(c, addr, subAccountID, orderID)
	if err != nil {
		return err
	}
	if o.OrderType != order.TypeTriggerMarket && o.OrderType != order.TypeTriggerLimit {
		return engerrors.ErrInvalidOrderParams
	}
	if o.Triggered {
		return engerrors.ErrInvalidOrderParams
	}
	o.Triggered = true
	if err := c.Store.SaveOrder(addr, subAccountID, o); err != nil {
		return err
	}
	c.emit(events.OrderActionRecord{
		RecordID:          uuid.New(),
		Ts:                c.Now,
		Action:            events.ActionTrigger,
		ActionExplanation: events.ExplainNone,
		MarketIndex:       o.MarketIndex,
		MarketType:        uint8(o.MarketType),
		Taker:             &addr,
		TakerOrderID:      &orderID,
	})
	return nil
}

// ExpireOrders cancels every resting order for a sub-account whose
// max_ts has passed or whose time_in_force window has elapsed. The engine
// never expires orders on its own; the host drives this.
func ExpireOrders(c *Ctx, addr common.Address, subAccountID uint8) ([]uint32, error) {
	orders, err := c.Store.LoadOpenOrders(addr, subAccountID)
	if err != nil {
		return nil, err
	}

	var canceled []uint32
	for _, o := range orders {
		expired := (o.MaxTs != 0 && c.Now >= o.MaxTs) ||
			(o.TimeInForce != 0 && c.Slot >= o.Slot+uint64(o.TimeInForce))
		if !expired {
			continue
		}
		if err := c.Store.DeleteOrder(addr, subAccountID, o.OrderID); err != nil {
			return canceled, err
		}
		canceled = append(canceled, o.OrderID)
		c.emit(events.OrderActionRecord{
			RecordID:          uuid.New(),
			Ts:                c.Now,
			Action:            events.ActionExpire,
			ActionExplanation: events.ExplainOrderExpired,
			MarketIndex:       o.MarketIndex,
			MarketType:        uint8(o.MarketType),
			Taker:             &addr,
			TakerOrderID:      &o.OrderID,
		})
	}
	return canceled, nil
}

func loadOrder(c *Ctx, addr common.Address, subAccountID uint8, orderID uint32) (*order.Order, error) {
	orders, err := c.Store.LoadOpenOrders(addr, subAccountID)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		if o.OrderID == orderID {
			return o, nil
		}
	}
	return nil, engerrors.ErrInvalidOrderParams
}
