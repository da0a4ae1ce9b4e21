package pricing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jodise/jodise-backend/pkg/config"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// Rates is the platform rate snapshot applied to one order. Resolve it once
// per fulfillment or initialization call and pass it down; never re-read
// config mid-order.
type Rates struct {
	VATPercent        decimal.Decimal
	CommissionPercent decimal.Decimal
	DeliveryFee       decimal.Decimal
	Currency          string
}

// RatesFromConfig parses the configured marketplace rates.
func RatesFromConfig(cfg config.MarketplaceConfig) (Rates, error) {
	vat, err := decimal.NewFromString(cfg.VATPercent)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid vat percent")
	}
	commission, err := decimal.NewFromString(cfg.CommissionPercent)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid commission percent")
	}
	deliveryFee, err := decimal.NewFromString(cfg.DeliveryFee)
	if err != nil {
		return Rates{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid delivery fee")
	}
	return Rates{
		VATPercent:        vat,
		CommissionPercent: commission,
		DeliveryFee:       deliveryFee,
		Currency:          cfg.Currency,
	}, nil
}

// CommissionFor returns the commission percent for a line, honoring a
// seller-specific override when one is set.
func (r Rates) CommissionFor(override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return r.CommissionPercent
}

// LineInput is one order line fed into the ledger arithmetic.
type LineInput struct {
	SellerID           uuid.UUID
	UnitPrice          decimal.Decimal
	Qty                int
	CommissionOverride *decimal.Decimal
}

// LineAmounts is the decomposition of one line's money.
type LineAmounts struct {
	Subtotal   decimal.Decimal
	VAT        decimal.Decimal
	Commission decimal.Decimal
	Earnings   decimal.Decimal
}

// ComputeLine decomposes a single line: subtotal, VAT and commission both as
// percentages of the subtotal, and what remains for the seller.
func ComputeLine(in LineInput, rates Rates) LineAmounts {
	subtotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Qty)))
	vat := subtotal.Mul(rates.VATPercent).Div(hundred)
	commission := subtotal.Mul(rates.CommissionFor(in.CommissionOverride)).Div(hundred)
	return LineAmounts{
		Subtotal:   subtotal,
		VAT:        vat,
		Commission: commission,
		Earnings:   subtotal.Sub(vat).Sub(commission),
	}
}

// Totals is the order-level money summary.
type Totals struct {
	Subtotal    decimal.Decimal
	VAT         decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// OrderTotals sums line subtotals and applies VAT and the delivery fee.
func OrderTotals(lines []LineInput, rates Rates) Totals {
	subtotal := decimal.Zero
	vat := decimal.Zero
	for _, line := range lines {
		amounts := ComputeLine(line, rates)
		subtotal = subtotal.Add(amounts.Subtotal)
		vat = vat.Add(amounts.VAT)
	}
	return Totals{
		Subtotal:    subtotal,
		VAT:         vat,
		DeliveryFee: rates.DeliveryFee,
		Total:       subtotal.Add(vat).Add(rates.DeliveryFee),
	}
}

// SellerBreakdown aggregates one seller's share of an order.
type SellerBreakdown struct {
	SellerID   uuid.UUID
	Earned     decimal.Decimal
	VAT        decimal.Decimal
	Commission decimal.Decimal
	Payable    decimal.Decimal
}

// BySeller groups line amounts per seller. Iteration order of the result is
// stable (first appearance in lines) so payout rows are created
// deterministically.
func BySeller(lines []LineInput, rates Rates) []SellerBreakdown {
	index := map[uuid.UUID]int{}
	out := []SellerBreakdown{}
	for _, line := range lines {
		amounts := ComputeLine(line, rates)
		i, ok := index[line.SellerID]
		if !ok {
			i = len(out)
			index[line.SellerID] = i
			out = append(out, SellerBreakdown{SellerID: line.SellerID})
		}
		out[i].Earned = out[i].Earned.Add(amounts.Subtotal)
		out[i].VAT = out[i].VAT.Add(amounts.VAT)
		out[i].Commission = out[i].Commission.Add(amounts.Commission)
		out[i].Payable = out[i].Payable.Add(amounts.Earnings)
	}
	return out
}
