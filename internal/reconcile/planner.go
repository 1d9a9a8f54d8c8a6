// Package reconcile plans the exchange actions needed to move an account
// from its current net position to the stance an intent requests.
//
// Policy: one directional exposure per instrument at a time. An intent
// against an opposing position closes it first, then opens fresh. The
// close-then-open sequence is never collapsed into a single net order;
// exchanges disagree on net-vs-hedge position semantics and the explicit
// sequence is correct under both.
package reconcile

import (
	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Plan produces the ordered action sequence for one intent.
//
// approvedQty is the risk-adjusted quantity for the opening leg; the
// closing leg always uses the absolute current position size. The close is
// always a reduce-only market order regardless of the intent's own style:
// its purpose is immediate flattening, not price optimization.
func Plan(intent types.TradeIntent, pos types.NetPosition, approvedQty decimal.Decimal) types.ReconciliationPlan {
	var plan types.ReconciliationPlan

	posSide := pos.Side()
	if posSide != types.SideFlat && posSide != intent.Direction {
		plan.Actions = append(plan.Actions, types.PlannedAction{
			Kind:       types.ActionClose,
			Instrument: intent.Instrument,
			Direction:  posSide.Opposite(),
			Quantity:   pos.SignedQuantity.Abs(),
			Style:      types.StyleMarket,
			ReduceOnly: true,
		})
	}

	plan.Actions = append(plan.Actions, types.PlannedAction{
		Kind:       types.ActionOpen,
		Instrument: intent.Instrument,
		Direction:  intent.Direction,
		Quantity:   approvedQty,
		Style:      intent.Style,
		LimitPrice: intent.LimitPrice,
	})

	return plan
}
