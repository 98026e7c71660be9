package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// OriginalKey lays originals out per photographer and event.
func OriginalKey(photographerID uuid.UUID, eventID *uuid.UUID, photoID uuid.UUID, filename string) string {
	event := "no_event"
	if eventID != nil {
		event = eventID.String()
	}
	return fmt.Sprintf("photos/%s/%s/%s%s", photographerID, event, photoID, extension(filename, ".jpg"))
}

func WatermarkedKey(photographerID, photoID uuid.UUID) string {
	return fmt.Sprintf("watermarked/%s/%s.jpg", photographerID, photoID)
}

func ThumbnailKey(photographerID, photoID uuid.UUID, ext string) string {
	return fmt.Sprintf("thumbnails/%s/%s%s", photographerID, photoID, ext)
}

func SelfieKey(clientID uuid.UUID, filename string) string {
	return fmt.Sprintf("selfies/%s/%s%s", clientID, uuid.NewString(), extension(filename, ".jpg"))
}

func extension(filename, fallback string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".bmp", ".gif":
		return ext
	default:
		return fallback
	}
}
