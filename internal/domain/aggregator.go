package domain

import (
	"fmt"
	"math"
)

// totalsTolerance absorbs float rounding when comparing stored and recomputed totals.
const totalsTolerance = 1e-6

// PortfolioMetrics aggregates a user's quote collection.
type PortfolioMetrics struct {
	TotalQuoted float64
	TotalWon    float64
	GrossProfit float64
	// MarginRate is GrossProfit / TotalQuoted in percent, 0 when nothing was quoted.
	MarginRate float64
	QuoteCount int
	WonCount   int
	LostCount  int
	// WinRate is won / (won + lost) in percent, 0 when no quote is decided.
	WinRate       float64
	ActiveClients int
}

// ComputeQuoteTotal sums item amounts. Non-finite amounts count as 0.
func ComputeQuoteTotal(items []QuoteItem) float64 {
	var total float64
	for i := range items {
		total += number(items[i].Amount)
	}

	return total
}

// ComputeQuoteCost sums estimated hours times the internal cost of each item's role.
// Roles without a configured cost contribute 0.
func ComputeQuoteCost(items []QuoteItem, costRates map[Role]float64) float64 {
	var cost float64
	for i := range items {
		cost += number(items[i].EstimatedHours) * number(costRates[items[i].SuggestedRole])
	}

	return cost
}

// PriceItem turns a draft into a quote item.
//
// A missing hourly rate falls back to roleRates for the item's role (0 if absent).
// A missing amount is derived as hours × rate; a supplied amount is kept as given.
func PriceItem(draft ItemDraft, roleRates map[Role]float64) QuoteItem {
	role := NormalizeRole(draft.SuggestedRole)

	hours := deref(draft.EstimatedHours)

	rate := roleRates[role]
	if draft.HourlyRate != nil {
		rate = number(*draft.HourlyRate)
	}

	amount := hours * rate
	if draft.Amount != nil {
		amount = number(*draft.Amount)
	}

	return QuoteItem{
		Description:    draft.Description,
		EstimatedHours: hours,
		SuggestedRole:  role,
		HourlyRate:     rate,
		Amount:         amount,
	}
}

// PriceItems prices every draft with PriceItem.
func PriceItems(drafts []ItemDraft, roleRates map[Role]float64) []QuoteItem {
	items := make([]QuoteItem, 0, len(drafts))
	for _, d := range drafts {
		items = append(items, PriceItem(d, roleRates))
	}

	return items
}

// VerifyTotals checks that a quote's stored total equals the sum of its items.
func VerifyTotals(q *Quote) error {
	want := ComputeQuoteTotal(q.Items)
	if math.Abs(want-q.TotalAmount) > totalsTolerance {
		return fmt.Errorf("quote total %.2f does not match item sum %.2f", q.TotalAmount, want)
	}

	return nil
}

// ComputePortfolioMetrics aggregates a quote collection. It never fails:
// absent numbers count as 0 and rates are 0 when their denominator is 0.
func ComputePortfolioMetrics(quotes []Quote) PortfolioMetrics {
	var m PortfolioMetrics

	clients := make(map[string]struct{})

	for i := range quotes {
		q := &quotes[i]
		amount := number(q.TotalAmount)

		m.QuoteCount++
		m.TotalQuoted += amount
		m.GrossProfit += number(q.TotalMargin)

		switch q.Status {
		case StatusWon:
			m.WonCount++
			m.TotalWon += amount
		case StatusLost:
			m.LostCount++
		case StatusDraft, StatusSent:
		}

		if q.CustomerID != nil && *q.CustomerID != "" {
			clients[*q.CustomerID] = struct{}{}
		}
	}

	m.ActiveClients = len(clients)
	m.MarginRate = percent(m.GrossProfit, m.TotalQuoted)
	m.WinRate = percent(float64(m.WonCount), float64(m.WonCount+m.LostCount))

	return m
}

func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}

	return part / whole * 100
}

func number(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}

	return number(*v)
}
