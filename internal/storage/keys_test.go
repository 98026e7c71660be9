package storage

import (
	"testing"

	"github.com/google/uuid"
)

func TestOriginalKey(t *testing.T) {
	pg := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	photo := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	event := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	tests := []struct {
		name     string
		event    *uuid.UUID
		filename string
		want     string
	}{
		{"no event", nil, "IMG_001.JPG", "photos/" + pg.String() + "/no_event/" + photo.String() + ".jpg"},
		{"with event", &event, "a.png", "photos/" + pg.String() + "/" + event.String() + "/" + photo.String() + ".png"},
		{"unknown extension", nil, "raw.cr2", "photos/" + pg.String() + "/no_event/" + photo.String() + ".jpg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := OriginalKey(pg, tc.event, photo, tc.filename); got != tc.want {
				t.Errorf("OriginalKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDerivativeKeys(t *testing.T) {
	pg := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	photo := uuid.MustParse("22222222-2222-2222-2222-222222222222")

	if got, want := WatermarkedKey(pg, photo), "watermarked/"+pg.String()+"/"+photo.String()+".jpg"; got != want {
		t.Errorf("WatermarkedKey() = %q, want %q", got, want)
	}
	if got, want := ThumbnailKey(pg, photo, ".png"), "thumbnails/"+pg.String()+"/"+photo.String()+".png"; got != want {
		t.Errorf("ThumbnailKey() = %q, want %q", got, want)
	}
}
