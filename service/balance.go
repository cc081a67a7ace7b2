package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"billing-service/currency"
	"billing-service/models"
	"billing-service/store"
)

// ComputeBalance derives a balance from ledger history: successful payments
// minus paid bills converted to NGN. Inputs may be in any order.
func ComputeBalance(payments []models.Payment, paidBills []models.Bill, conv currency.Converter) *models.Balance {
	credits := decimal.Zero
	var last *models.Payment
	for i := range payments {
		p := payments[i]
		if p.Status != models.PaymentStatusSuccess {
			continue
		}
		credits = credits.Add(p.Amount)
		if last == nil || paidAfter(p.PaidAt, last.PaidAt) {
			last = &p
		}
	}

	debits := decimal.Zero
	for _, b := range paidBills {
		if !b.IsPaid {
			continue
		}
		debits = debits.Add(conv.BillAmount(b))
	}

	return &models.Balance{
		Balance:     credits.Sub(debits),
		Currency:    models.CurrencyNGN,
		LastDeposit: last,
	}
}

func paidAfter(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

// balanceOf reads the student's history through l, which may be bound to a
// transaction.
func balanceOf(ctx context.Context, l store.Ledger, studentID string, conv currency.Converter) (*models.Balance, error) {
	payments, err := l.ListSuccessfulPayments(ctx, studentID)
	if err != nil {
		return nil, err
	}
	bills, err := l.ListPaidBills(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return ComputeBalance(payments, bills, conv), nil
}
