package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
)

func TestDeletionRequestRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	photo := f.addPhoto(t, "100")

	r, err := f.svc.RequestDeletion(ctx, photo, f.client, "that's me")
	if err != nil {
		t.Fatalf("RequestDeletion: %v", err)
	}
	if _, err := f.svc.RequestDeletion(ctx, photo, f.client, "again"); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("second RequestDeletion error = %v, want ErrDuplicateRequest", err)
	}

	resolved, err := f.svc.ResolveDeletion(ctx, r.ID, f.photographer, false, "public event")
	if err != nil {
		t.Fatalf("ResolveDeletion: %v", err)
	}
	if resolved.Status != models.DeletionStatusRejected || resolved.Response != "public event" {
		t.Errorf("request = %+v, want rejected with response", resolved)
	}
	if resolved.ProcessedBy == nil || *resolved.ProcessedBy != f.photographer || resolved.ProcessedAt == nil {
		t.Errorf("responder not recorded: %+v", resolved)
	}

	p, _ := f.store.GetPhoto(ctx, photo)
	if p.Status != models.PhotoStatusActive {
		t.Errorf("photo status = %s, want active", p.Status)
	}

	if _, err := f.svc.ResolveDeletion(ctx, r.ID, f.photographer, true, ""); !errors.Is(err, ErrAlreadyResolved) {
		t.Errorf("second resolve error = %v, want ErrAlreadyResolved", err)
	}
	if _, err := f.svc.RequestDeletion(ctx, photo, f.client, "please"); err != nil {
		t.Errorf("new request after rejection: %v", err)
	}
}

func TestDeletionRequestApproved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	event := &models.Event{PhotographerID: f.photographer, Name: "Marathon"}
	if err := f.store.CreateEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	p := &models.Photo{PhotographerID: f.photographer, EventID: &event.ID, Status: models.PhotoStatusActive}
	if err := f.store.CreatePhoto(ctx, p); err != nil {
		t.Fatal(err)
	}
	if err := f.store.RecountEventPhotos(ctx, event.ID); err != nil {
		t.Fatal(err)
	}

	r, err := f.svc.RequestDeletion(ctx, p.ID, f.client, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ResolveDeletion(ctx, r.ID, uuid.New(), true, ""); !errors.Is(err, ErrForbidden) {
		t.Errorf("resolve by stranger error = %v, want ErrForbidden", err)
	}

	resolved, err := f.svc.ResolveDeletion(ctx, r.ID, f.photographer, true, "removed")
	if err != nil {
		t.Fatalf("ResolveDeletion: %v", err)
	}
	if resolved.Status != models.DeletionStatusApproved {
		t.Errorf("status = %s, want approved", resolved.Status)
	}

	stored, _ := f.store.GetPhoto(ctx, p.ID)
	if stored.Status != models.PhotoStatusDeleted {
		t.Errorf("photo status = %s, want deleted", stored.Status)
	}
	ev, _ := f.store.GetEvent(ctx, event.ID)
	if ev.PhotosCount != 0 {
		t.Errorf("event photos_count = %d, want 0", ev.PhotosCount)
	}

	if _, err := f.svc.RequestDeletion(ctx, p.ID, f.client, ""); !errors.Is(err, ErrPhotoUnavailable) {
		t.Errorf("request on deleted photo error = %v, want ErrPhotoUnavailable", err)
	}
	if _, err := f.svc.ResolveDeletion(ctx, uuid.New(), f.photographer, true, ""); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("unknown request error = %v, want ErrRequestNotFound", err)
	}
}

func TestPendingDeletionHidesPhotoFromClient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	photo := &models.Photo{PhotographerID: f.photographer}
	if err := f.store.CreatePhoto(ctx, photo); err != nil {
		t.Fatal(err)
	}
	res := &models.ProcessingResult{
		PhotoID:        photo.ID,
		FacesProcessed: true,
		Faces:          []models.PhotoFace{{MatchedClientID: &f.client, Confidence: 80}},
	}
	if err := f.store.CompletePhotoProcessing(ctx, res); err != nil {
		t.Fatal(err)
	}

	list := func() int {
		photos, err := f.store.ListClientPhotos(ctx, f.client, models.PhotoFilter{})
		if err != nil {
			t.Fatal(err)
		}
		return len(photos)
	}
	if n := list(); n != 1 {
		t.Fatalf("client sees %d photos, want 1", n)
	}

	r, err := f.svc.RequestDeletion(ctx, photo.ID, f.client, "")
	if err != nil {
		t.Fatal(err)
	}
	if n := list(); n != 0 {
		t.Errorf("client sees %d photos with pending deletion, want 0", n)
	}

	if _, err := f.svc.ResolveDeletion(ctx, r.ID, f.photographer, false, ""); err != nil {
		t.Fatal(err)
	}
	if n := list(); n != 1 {
		t.Errorf("client sees %d photos after rejection, want 1", n)
	}
}
