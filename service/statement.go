package service

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"billing-service/currency"
	"billing-service/models"
)

// BuildStatement merges successful payments (credits) and paid bills
// (debits) into statement entries, most recent first. Running balances are
// accumulated oldest first, so the first entry carries the current balance.
func BuildStatement(payments []models.Payment, paidBills []models.Bill, conv currency.Converter) []models.StatementEntry {
	entries := make([]models.StatementEntry, 0, len(payments)+len(paidBills))

	for _, p := range payments {
		if p.Status != models.PaymentStatusSuccess {
			continue
		}
		entries = append(entries, models.StatementEntry{
			Date:            settledAt(p.PaidAt, p.CreatedAt),
			ReferenceNumber: p.Reference,
			Description:     p.Description,
			Direction:       models.DirectionCredit,
			AmountNGN:       p.Amount,
		})
	}

	for _, b := range paidBills {
		if !b.IsPaid {
			continue
		}
		entry := models.StatementEntry{
			Date:        settledAt(b.PaidAt, b.CreatedAt),
			Description: b.Description,
			Direction:   models.DirectionDebit,
			AmountNGN:   conv.BillAmount(b),
		}
		if entry.Description == "" {
			entry.Description = string(b.Type)
		}
		if b.ReferenceNumber != nil {
			entry.ReferenceNumber = *b.ReferenceNumber
		}
		entries = append(entries, entry)
	}

	// Stable: on equal dates the deposit is counted before the bill it paid.
	slices.SortStableFunc(entries, func(a, b models.StatementEntry) int {
		return a.Date.Compare(b.Date)
	})

	running := decimal.Zero
	for i := range entries {
		if entries[i].Direction == models.DirectionCredit {
			running = running.Add(entries[i].AmountNGN)
		} else {
			running = running.Sub(entries[i].AmountNGN)
		}
		entries[i].RunningBalance = running
	}

	slices.Reverse(entries)
	return entries
}

func settledAt(paidAt *time.Time, fallback time.Time) time.Time {
	if paidAt != nil {
		return *paidAt
	}
	return fallback
}
