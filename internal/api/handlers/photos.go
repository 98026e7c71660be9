package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/pkg/dto"
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".bmp": true, ".gif": true,
}

type PhotoHandler struct {
	db       storage.Store
	objects  storage.ObjectStore
	proc     Processing
	maxBytes int64
}

func NewPhotoHandler(db storage.Store, objects storage.ObjectStore, proc Processing, maxUploadMB int64) *PhotoHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 25
	}
	return &PhotoHandler{db: db, objects: objects, proc: proc, maxBytes: maxUploadMB << 20}
}

func photoResponse(ctx context.Context, objects storage.ObjectStore, p *models.Photo) dto.PhotoResponse {
	return dto.PhotoResponse{
		ID:              p.ID,
		PhotographerID:  p.PhotographerID,
		EventID:         p.EventID,
		OriginalName:    p.OriginalName,
		Price:           p.Price,
		Status:          string(p.Status),
		FacesCount:      p.FacesCount,
		FacesProcessed:  p.FacesProcessed,
		ProcessingError: p.ProcessingError,
		ThumbnailURL:    presign(ctx, objects, p.ThumbnailKey),
		WatermarkedURL:  presign(ctx, objects, p.WatermarkedKey),
		CreatedAt:       p.CreatedAt.Format(timeLayout),
	}
}

// currentPhotographer loads the caller's photographer profile or answers 403.
func currentPhotographer(c *gin.Context, db storage.Store) (*models.Photographer, bool) {
	pg, err := db.GetPhotographer(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if pg == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "photographer profile required"})
		return nil, false
	}
	return pg, true
}

// ownedPhoto loads a photo of the caller or answers 404/403.
func ownedPhoto(c *gin.Context, db storage.Store) (*models.Photo, bool) {
	id, ok := paramUUID(c, "id", "photo")
	if !ok {
		return nil, false
	}
	photo, err := db.GetPhoto(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if photo == nil || photo.Status == models.PhotoStatusDeleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return nil, false
	}
	if photo.PhotographerID != auth.UserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your photo"})
		return nil, false
	}
	return photo, true
}

// Upload accepts several files in the "photos" field. Each file is stored,
// recorded as processing and then processed or queued. Per-file problems are
// listed in the response without failing the whole batch.
func (h *PhotoHandler) Upload(c *gin.Context) {
	pg, ok := currentPhotographer(c, h.db)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file in \"photos\" required"})
		return
	}

	ctx := c.Request.Context()
	price := pg.DefaultPrice
	var eventID *uuid.UUID
	if raw := c.PostForm("event_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event_id"})
			return
		}
		event, err := h.db.GetEvent(ctx, id)
		if err != nil {
			respondError(c, err)
			return
		}
		if event == nil || event.PhotographerID != pg.ID {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		eventID = &id
		price = event.DefaultPrice
	}
	if raw := c.PostForm("price"); raw != "" {
		p, err := decimal.NewFromString(raw)
		if err != nil || !p.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "price must be a positive number"})
			return
		}
		price = p
	}

	resp := dto.UploadResponse{Photos: []dto.PhotoResponse{}, Queued: h.proc.async()}
	for _, fh := range files {
		photo, err := h.store(ctx, pg.ID, eventID, price, fh)
		if err != nil {
			resp.Failed = append(resp.Failed, dto.UploadFailure{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		// A photo left in processing is picked up again by the scheduler sweep.
		if err := h.proc.Photo(ctx, photo.ID); err != nil {
			slog.Warn("process uploaded photo", "photo_id", photo.ID, "queued", h.proc.async(), "error", err)
		}
		if fresh, err := h.db.GetPhoto(ctx, photo.ID); err == nil && fresh != nil {
			photo = fresh
		}
		resp.Photos = append(resp.Photos, photoResponse(ctx, h.objects, photo))
	}

	status := http.StatusCreated
	if len(resp.Photos) == 0 {
		status = http.StatusBadRequest
	}
	c.JSON(status, resp)
}

func (h *PhotoHandler) store(ctx context.Context, photographerID uuid.UUID, eventID *uuid.UUID, price decimal.Decimal, fh *multipart.FileHeader) (*models.Photo, error) {
	ext := strings.ToLower(path.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}
	if fh.Size > h.maxBytes {
		return nil, fmt.Errorf("file exceeds %d MB", h.maxBytes>>20)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxBytes {
		return nil, fmt.Errorf("file exceeds %d MB", h.maxBytes>>20)
	}

	photo := &models.Photo{
		ID:             uuid.New(),
		PhotographerID: photographerID,
		EventID:        eventID,
		OriginalName:   fh.Filename,
		Price:          price,
		Status:         models.PhotoStatusProcessing,
		FileSize:       int64(len(data)),
	}
	photo.OriginalKey = storage.OriginalKey(photographerID, eventID, photo.ID, fh.Filename)

	if err := h.objects.PutObject(ctx, photo.OriginalKey, data, http.DetectContentType(data)); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}
	if err := h.db.CreatePhoto(ctx, photo); err != nil {
		_ = h.objects.DeleteObject(ctx, photo.OriginalKey)
		return nil, fmt.Errorf("record photo: %w", err)
	}
	return photo, nil
}

// Faces lists the detected faces of one of the caller's photos.
func (h *PhotoHandler) Faces(c *gin.Context) {
	photo, ok := ownedPhoto(c, h.db)
	if !ok {
		return
	}

	faces, err := h.db.ListPhotoFaces(c.Request.Context(), photo.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.FaceResponse, 0, len(faces))
	for _, f := range faces {
		resp = append(resp, dto.FaceResponse{
			ID:              f.ID,
			Box:             f.Box,
			MatchedClientID: f.MatchedClientID,
			Confidence:      f.Confidence,
		})
	}
	c.JSON(http.StatusOK, gin.H{"faces": resp, "total": len(resp)})
}

// SetVisibility toggles a photo between active and hidden.
func (h *PhotoHandler) SetVisibility(c *gin.Context) {
	photo, ok := ownedPhoto(c, h.db)
	if !ok {
		return
	}

	var req dto.VisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, to := models.PhotoStatusActive, models.PhotoStatusHidden
	if !*req.Hidden {
		from, to = to, from
	}
	switch photo.Status {
	case to:
	case from:
		if err := h.db.SetPhotoStatus(c.Request.Context(), photo.ID, to, ""); err != nil {
			respondError(c, err)
			return
		}
		photo.Status = to
	default:
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("photo is %s", photo.Status)})
		return
	}

	c.JSON(http.StatusOK, photoResponse(c.Request.Context(), h.objects, photo))
}
