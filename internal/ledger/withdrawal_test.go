package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
)

func TestRequestWithdrawal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.store.SetBalance(f.photographer, dec("1000"))

	if _, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec("1000.01"), ""); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("RequestWithdrawal(too much) error = %v, want ErrInsufficientBalance", err)
	}
	if got := f.balance(t); !got.Equal(dec("1000")) {
		t.Errorf("balance = %s after refused withdrawal, want 1000", got)
	}

	w, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec("600"), "")
	if err != nil {
		t.Fatalf("RequestWithdrawal: %v", err)
	}
	if w.Status != models.WithdrawalStatusPending || w.BankCard != "4111111111111111" {
		t.Errorf("withdrawal = %+v, want pending to profile card", w)
	}
	if got := f.balance(t); !got.Equal(dec("400")) {
		t.Errorf("balance = %s, want 400", got)
	}

	if _, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec("400"), "5555"); err != nil {
		t.Fatalf("withdraw remaining balance: %v", err)
	}
	if got := f.balance(t); !got.IsZero() {
		t.Errorf("balance = %s, want 0", got)
	}

	for _, amount := range []string{"0", "-5"} {
		if _, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec(amount), ""); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("RequestWithdrawal(%s) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if _, err := f.svc.RequestWithdrawal(ctx, uuid.New(), dec("1"), "1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("RequestWithdrawal(unknown photographer) error = %v, want ErrForbidden", err)
	}

	var withdrawals int
	for _, txn := range f.store.Transactions() {
		if txn.Type == models.TransactionWithdrawal {
			withdrawals++
		}
	}
	if withdrawals != 2 {
		t.Errorf("%d withdrawal transactions, want 2", withdrawals)
	}
}

func TestWithdrawalStatusTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.store.SetBalance(f.photographer, dec("300"))

	done, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec("100"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateWithdrawalStatus(ctx, done.ID, models.WithdrawalStatusCompleted, "admin", ""); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending to completed error = %v, want ErrInvalidTransition", err)
	}
	w, err := f.svc.UpdateWithdrawalStatus(ctx, done.ID, models.WithdrawalStatusProcessing, "admin", "")
	if err != nil || w.ProcessedAt != nil {
		t.Fatalf("to processing = %+v, %v", w, err)
	}
	w, err = f.svc.UpdateWithdrawalStatus(ctx, done.ID, models.WithdrawalStatusCompleted, "admin", "")
	if err != nil || w.Status != models.WithdrawalStatusCompleted || w.ProcessedAt == nil || w.ProcessedBy != "admin" {
		t.Fatalf("to completed = %+v, %v", w, err)
	}
	if _, err := f.svc.UpdateWithdrawalStatus(ctx, done.ID, models.WithdrawalStatusRejected, "admin", "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("completed to rejected error = %v, want ErrInvalidTransition", err)
	}

	rejected, err := f.svc.RequestWithdrawal(ctx, f.photographer, dec("150"), "")
	if err != nil {
		t.Fatal(err)
	}
	if got := f.balance(t); !got.Equal(dec("50")) {
		t.Fatalf("balance = %s, want 50", got)
	}
	w, err = f.svc.UpdateWithdrawalStatus(ctx, rejected.ID, models.WithdrawalStatusRejected, "admin", "card blocked")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if w.RejectionReason != "card blocked" {
		t.Errorf("rejection_reason = %q", w.RejectionReason)
	}
	if got := f.balance(t); !got.Equal(dec("200")) {
		t.Errorf("balance = %s after rejection, want 200", got)
	}

	txns := f.store.Transactions()
	if last := txns[len(txns)-1]; last.Type != models.TransactionRefund || !last.Amount.Equal(dec("150")) {
		t.Errorf("last transaction = %+v, want 150 refund", last)
	}

	if _, err := f.svc.UpdateWithdrawalStatus(ctx, uuid.New(), models.WithdrawalStatusProcessing, "admin", ""); !errors.Is(err, ErrWithdrawalNotFound) {
		t.Errorf("unknown withdrawal error = %v, want ErrWithdrawalNotFound", err)
	}
}
