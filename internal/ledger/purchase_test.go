package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/payments"
)

func TestPurchaseInstantSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	for i := 0; i < 3; i++ {
		photo := f.addPhoto(t, "500")
		p, err := f.svc.Purchase(ctx, f.client, photo)
		if err != nil {
			t.Fatalf("Purchase: %v", err)
		}
		if p.Status != models.PurchaseStatusPaid || p.PaidAt == nil {
			t.Errorf("status = %s, paid_at = %v; want paid", p.Status, p.PaidAt)
		}
		if !p.Commission.Equal(dec("75")) || !p.PhotographerAmount.Equal(dec("425")) {
			t.Errorf("split = %s / %s, want 75.00 / 425.00", p.Commission.StringFixed(2), p.PhotographerAmount.StringFixed(2))
		}
		if !p.Amount.Equal(p.Commission.Add(p.PhotographerAmount)) {
			t.Errorf("amount %s != commission + photographer amount", p.Amount)
		}
		if p.MaxDownloads != 5 || p.DownloadToken == "" {
			t.Errorf("max_downloads = %d, token = %q", p.MaxDownloads, p.DownloadToken)
		}
	}

	if got := f.balance(t); !got.Equal(dec("1275")) {
		t.Errorf("balance = %s, want 1275", got)
	}
	c, _ := f.store.GetClient(ctx, f.client)
	if c.TotalPurchases != 3 || !c.TotalSpent.Equal(dec("1500")) {
		t.Errorf("client totals = %d / %s, want 3 / 1500", c.TotalPurchases, c.TotalSpent)
	}

	var sales, purchases int
	for _, txn := range f.store.Transactions() {
		switch txn.Type {
		case models.TransactionSale:
			sales++
		case models.TransactionPurchase:
			purchases++
		}
	}
	if sales != 3 || purchases != 3 {
		t.Errorf("transactions: %d sales, %d purchases; want 3 each", sales, purchases)
	}
}

func TestPurchaseTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	photo := f.addPhoto(t, "500")

	if _, err := f.svc.Purchase(ctx, f.client, photo); err != nil {
		t.Fatal(err)
	}
	before := f.balance(t)
	txns := len(f.store.Transactions())

	if _, err := f.svc.Purchase(ctx, f.client, photo); !errors.Is(err, ErrAlreadyPurchased) {
		t.Fatalf("second Purchase error = %v, want ErrAlreadyPurchased", err)
	}
	if got := f.balance(t); !got.Equal(before) {
		t.Errorf("balance changed to %s after refused purchase", got)
	}
	if got := len(f.store.Transactions()); got != txns {
		t.Errorf("%d transactions after refused purchase, want %d", got, txns)
	}

	// Another client can still buy the same photo.
	other := f.addClient(t)
	if _, err := f.svc.Purchase(ctx, other, photo); err != nil {
		t.Errorf("Purchase by another client: %v", err)
	}
}

func TestPurchaseRejectsUnavailablePhoto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	photo := f.addPhoto(t, "100")
	if err := f.store.SetPhotoStatus(ctx, photo, models.PhotoStatusHidden, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Purchase(ctx, f.client, photo); !errors.Is(err, ErrPhotoUnavailable) {
		t.Errorf("Purchase(hidden) error = %v, want ErrPhotoUnavailable", err)
	}
	if _, err := f.svc.Purchase(ctx, f.client, uuid.New()); !errors.Is(err, ErrPhotoUnavailable) {
		t.Errorf("Purchase(missing) error = %v, want ErrPhotoUnavailable", err)
	}
	if _, err := f.svc.Purchase(ctx, f.photographer, f.addPhoto(t, "100")); !errors.Is(err, ErrForbidden) {
		t.Errorf("Purchase by non-client error = %v, want ErrForbidden", err)
	}
}

func TestPurchaseWithProviderAndWebhook(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	photo := f.addPhoto(t, "500")

	p, err := f.svc.Purchase(ctx, f.client, photo)
	if err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	if p.Status != models.PurchaseStatusPending || p.PaymentID == "" || p.PaymentURL == "" {
		t.Fatalf("purchase = %+v, want pending with payment", p)
	}
	if len(provider.requests) != 1 || !provider.requests[0].Amount.Equal(dec("500")) {
		t.Errorf("provider requests = %+v", provider.requests)
	}
	if !f.balance(t).IsZero() {
		t.Errorf("balance credited before payment")
	}

	provider.statuses = map[string]string{p.PaymentID: payments.StatusSucceeded}
	for i := 0; i < 2; i++ {
		if err := f.svc.HandlePaymentEvent(ctx, payments.EventSucceeded, p.PaymentID); err != nil {
			t.Fatalf("HandlePaymentEvent #%d: %v", i+1, err)
		}
	}
	if got := f.balance(t); !got.Equal(dec("425")) {
		t.Errorf("balance = %s after duplicate webhook, want 425", got)
	}
	stored, _ := f.store.GetPurchase(ctx, p.ID)
	if stored.Status != models.PurchaseStatusPaid {
		t.Errorf("status = %s, want paid", stored.Status)
	}

	// A late cancel does not undo a paid purchase.
	if err := f.svc.HandlePaymentEvent(ctx, payments.EventCanceled, p.PaymentID); err != nil {
		t.Fatal(err)
	}
	stored, _ = f.store.GetPurchase(ctx, p.ID)
	if stored.Status != models.PurchaseStatusPaid {
		t.Errorf("status after cancel = %s, want paid", stored.Status)
	}
}

func TestWebhookCancelAndNoise(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	p, err := f.svc.Purchase(ctx, f.client, f.addPhoto(t, "200"))
	if err != nil {
		t.Fatal(err)
	}
	provider.statuses = map[string]string{p.PaymentID: payments.StatusCanceled}

	for _, ev := range []struct{ event, paymentID string }{
		{"payment.waiting_for_capture", p.PaymentID},
		{payments.EventSucceeded, "unknown"},
		{payments.EventCanceled, p.PaymentID},
		{payments.EventSucceeded, p.PaymentID},
	} {
		if err := f.svc.HandlePaymentEvent(ctx, ev.event, ev.paymentID); err != nil {
			t.Errorf("HandlePaymentEvent(%s, %s): %v", ev.event, ev.paymentID, err)
		}
	}

	stored, _ := f.store.GetPurchase(ctx, p.ID)
	if stored.Status != models.PurchaseStatusFailed {
		t.Errorf("status = %s, want failed", stored.Status)
	}
	if !f.balance(t).IsZero() {
		t.Errorf("canceled payment credited the photographer")
	}
}

func TestWebhookVerifiedWithProvider(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	f := newFixture(t, provider)
	p, err := f.svc.Purchase(ctx, f.client, f.addPhoto(t, "300"))
	if err != nil {
		t.Fatal(err)
	}

	// The buyer posts a success the provider never reported.
	provider.statuses = map[string]string{p.PaymentID: "pending"}
	if err := f.svc.HandlePaymentEvent(ctx, payments.EventSucceeded, p.PaymentID); err != nil {
		t.Fatalf("HandlePaymentEvent: %v", err)
	}
	stored, _ := f.store.GetPurchase(ctx, p.ID)
	if stored.Status != models.PurchaseStatusPending || !f.balance(t).IsZero() {
		t.Fatalf("status = %s, balance = %s; want pending and nothing credited", stored.Status, f.balance(t))
	}

	provider.getErr = errors.New("provider down")
	if err := f.svc.HandlePaymentEvent(ctx, payments.EventSucceeded, p.PaymentID); err == nil {
		t.Error("HandlePaymentEvent should fail while the payment cannot be verified")
	}

	provider.getErr = nil
	provider.statuses[p.PaymentID] = payments.StatusSucceeded
	if err := f.svc.HandlePaymentEvent(ctx, payments.EventSucceeded, p.PaymentID); err != nil {
		t.Fatalf("HandlePaymentEvent: %v", err)
	}
	if got := f.balance(t); !got.Equal(dec("255")) {
		t.Errorf("balance = %s, want 255", got)
	}
}

func TestConcurrentSettlementCreditsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeProvider{})
	photo := f.addPhoto(t, "500")

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		p, err := f.svc.Purchase(ctx, f.client, photo)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(ids)*2)
	for _, id := range ids {
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(id uuid.UUID) {
				defer wg.Done()
				_, err := f.svc.Settle(ctx, id)
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)

	settled := 0
	for err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, ErrAlreadyPurchased), errors.Is(err, ErrNotPending):
		default:
			t.Errorf("Settle: %v", err)
		}
	}
	if settled != 1 {
		t.Errorf("%d settlements succeeded, want 1", settled)
	}
	if got := f.balance(t); !got.Equal(dec("425")) {
		t.Errorf("balance = %s, want 425", got)
	}
}

func TestSettleRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeProvider{})
	p, err := f.svc.Purchase(ctx, f.client, f.addPhoto(t, "500"))
	if err != nil {
		t.Fatal(err)
	}

	f.store.InsertTransactionErr = errors.New("disk full")
	if _, err := f.svc.Settle(ctx, p.ID); err == nil {
		t.Fatal("Settle succeeded despite failing transaction insert")
	}
	stored, _ := f.store.GetPurchase(ctx, p.ID)
	if stored.Status != models.PurchaseStatusPending {
		t.Errorf("status = %s after rollback, want pending", stored.Status)
	}
	if !f.balance(t).IsZero() {
		t.Errorf("balance = %s after rollback, want 0", f.balance(t))
	}

	f.store.InsertTransactionErr = nil
	if _, err := f.svc.Settle(ctx, p.ID); err != nil {
		t.Fatalf("Settle after recovery: %v", err)
	}
	if _, err := f.svc.Settle(ctx, uuid.New()); !errors.Is(err, ErrPurchaseNotFound) {
		t.Errorf("Settle(missing) error = %v, want ErrPurchaseNotFound", err)
	}
}

func TestDownloadQuota(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	photo := f.addPhoto(t, "500")
	p, err := f.svc.Purchase(ctx, f.client, photo)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		got, ph, err := f.svc.Download(ctx, p.ID, p.DownloadToken, f.client)
		if err != nil {
			t.Fatalf("download %d: %v", i, err)
		}
		if got.DownloadCount != i || ph.OriginalKey != "photos/original.jpg" {
			t.Errorf("download %d: count = %d, key = %q", i, got.DownloadCount, ph.OriginalKey)
		}
	}

	if _, _, err := f.svc.Download(ctx, p.ID, p.DownloadToken, f.client); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("6th download error = %v, want ErrQuotaExceeded", err)
	}
	stored, _ := f.store.GetPurchase(ctx, p.ID)
	if stored.DownloadCount != 5 {
		t.Errorf("download_count = %d, want 5", stored.DownloadCount)
	}
}

func TestDownloadAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, &fakeProvider{})
	pending, err := f.svc.Purchase(ctx, f.client, f.addPhoto(t, "500"))
	if err != nil {
		t.Fatal(err)
	}
	paid, err := f.svc.Purchase(ctx, f.client, f.addPhoto(t, "500"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Settle(ctx, paid.ID); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		id        uuid.UUID
		token     string
		requester uuid.UUID
		want      error
	}{
		{"pending purchase", pending.ID, pending.DownloadToken, f.client, ErrPurchaseNotFound},
		{"wrong token", paid.ID, "nope", f.client, ErrPurchaseNotFound},
		{"unknown purchase", uuid.New(), paid.DownloadToken, f.client, ErrPurchaseNotFound},
		{"someone else", paid.ID, paid.DownloadToken, uuid.New(), ErrForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := f.svc.Download(ctx, tc.id, tc.token, tc.requester); !errors.Is(err, tc.want) {
				t.Errorf("Download error = %v, want %v", err, tc.want)
			}
		})
	}

	stored, _ := f.store.GetPurchase(ctx, paid.ID)
	if stored.DownloadCount != 0 {
		t.Errorf("refused downloads were counted: %d", stored.DownloadCount)
	}
}
