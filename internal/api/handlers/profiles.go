package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/pkg/dto"
)

const maxSelfieBytes = 10 << 20

type ProfileHandler struct {
	db      storage.Store
	objects storage.ObjectStore
	proc    Processing
	index   *matching.Service
}

func NewProfileHandler(db storage.Store, objects storage.ObjectStore, proc Processing, index *matching.Service) *ProfileHandler {
	return &ProfileHandler{db: db, objects: objects, proc: proc, index: index}
}

func (h *ProfileHandler) CreatePhotographer(c *gin.Context) {
	var req dto.CreatePhotographerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p := &models.Photographer{
		ID:           auth.UserID(c),
		DisplayName:  req.DisplayName,
		DefaultPrice: decimal.NewFromInt(100),
		BankCard:     req.BankCard,
	}
	if req.DefaultPrice != nil {
		if !req.DefaultPrice.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "default_price must be positive"})
			return
		}
		p.DefaultPrice = *req.DefaultPrice
	}

	if err := h.db.CreatePhotographer(c.Request.Context(), p); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.PhotographerResponse{
		ID:           p.ID,
		DisplayName:  p.DisplayName,
		Balance:      p.Balance,
		TotalEarned:  p.TotalEarned,
		DefaultPrice: p.DefaultPrice,
		CreatedAt:    p.CreatedAt.Format(timeLayout),
	})
}

func (h *ProfileHandler) CreateClient(c *gin.Context) {
	var req dto.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	client := &models.Client{
		ID:          auth.UserID(c),
		DisplayName: req.DisplayName,
		FaceStatus:  models.FaceStatusUnprocessed,
	}
	if err := h.db.CreateClient(c.Request.Context(), client); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ClientResponse{
		ID:             client.ID,
		DisplayName:    client.DisplayName,
		FaceStatus:     string(client.FaceStatus),
		TotalPurchases: client.TotalPurchases,
		TotalSpent:     client.TotalSpent,
		CreatedAt:      client.CreatedAt.Format(timeLayout),
	})
}

// currentClient loads the caller's client profile or answers 403.
func (h *ProfileHandler) currentClient(c *gin.Context) (*models.Client, bool) {
	client, err := h.db.GetClient(c.Request.Context(), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if client == nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "client profile required"})
		return nil, false
	}
	return client, true
}

// UploadSelfie replaces the caller's selfie and encodes it. Face validation
// problems are reported in the body; the upload itself still succeeds.
func (h *ProfileHandler) UploadSelfie(c *gin.Context) {
	client, ok := h.currentClient(c)
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("selfie")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selfie file required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSelfieBytes+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read selfie failed"})
		return
	}
	if len(data) > maxSelfieBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "selfie too large"})
		return
	}

	ctx := c.Request.Context()
	key := storage.SelfieKey(client.ID, header.Filename)
	if err := h.objects.PutObject(ctx, key, data, http.DetectContentType(data)); err != nil {
		respondError(c, err)
		return
	}
	if err := h.db.SetClientSelfie(ctx, client.ID, key); err != nil {
		respondError(c, err)
		return
	}
	if client.SelfieKey != "" && client.SelfieKey != key {
		if err := h.objects.DeleteObject(ctx, client.SelfieKey); err != nil {
			slog.Warn("delete previous selfie", "client_id", client.ID, "key", client.SelfieKey, "error", err)
		}
	}

	matched, err := h.proc.Selfie(ctx, client.ID)
	switch {
	case err == nil,
		errors.Is(err, pipeline.ErrNoFaceFound),
		errors.Is(err, pipeline.ErrMultipleFacesFound),
		errors.Is(err, pipeline.ErrUnreadableImage):
	default:
		respondError(c, err)
		return
	}

	h.respondSelfie(c, matched)
}

func (h *ProfileHandler) GetSelfie(c *gin.Context) {
	h.respondSelfie(c, 0)
}

func (h *ProfileHandler) respondSelfie(c *gin.Context, matched int) {
	client, ok := h.currentClient(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, dto.SelfieResponse{
		HasSelfie:  client.SelfieKey != "",
		FaceStatus: string(client.FaceStatus),
		FaceError:  client.FaceError,
		Matched:    matched,
		Queued:     h.proc.async() && client.FaceStatus == models.FaceStatusUnprocessed && client.FaceError == "",
	})
}

// Rescan re-runs the caller's encoding against every face, taking over
// matches the caller's face satisfies.
func (h *ProfileHandler) Rescan(c *gin.Context) {
	client, ok := h.currentClient(c)
	if !ok {
		return
	}
	if !client.Matchable() {
		c.JSON(http.StatusConflict, gin.H{"error": "selfie not processed"})
		return
	}

	matched, err := h.index.RescanClient(c.Request.Context(), client.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RescanResponse{Matched: matched})
}

// MyPhotos lists active photos matched to the caller.
func (h *ProfileHandler) MyPhotos(c *gin.Context) {
	client, ok := h.currentClient(c)
	if !ok {
		return
	}

	var q dto.PhotoQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter, err := parsePhotoFilter(q)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	photos, err := h.db.ListClientPhotos(c.Request.Context(), client.ID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, photoResponse(c.Request.Context(), h.objects, &photos[i]))
	}
	c.JSON(http.StatusOK, gin.H{"photos": resp, "total": len(resp)})
}

func parsePhotoFilter(q dto.PhotoQuery) (models.PhotoFilter, error) {
	f := models.PhotoFilter{EventType: q.EventType, City: q.City}
	for _, d := range []struct {
		raw string
		dst **time.Time
	}{{q.DateFrom, &f.DateFrom}, {q.DateTo, &f.DateTo}} {
		if d.raw == "" {
			continue
		}
		t, err := time.Parse(time.DateOnly, d.raw)
		if err != nil {
			return f, errors.New("dates must be YYYY-MM-DD")
		}
		*d.dst = &t
	}
	for _, p := range []struct {
		raw string
		dst **decimal.Decimal
	}{{q.PriceMin, &f.PriceMin}, {q.PriceMax, &f.PriceMax}} {
		if p.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(p.raw)
		if err != nil {
			return f, errors.New("invalid price filter")
		}
		*p.dst = &v
	}
	return f, nil
}

func (h *ProfileHandler) Transactions(c *gin.Context) {
	txns, err := h.db.ListTransactions(c.Request.Context(), auth.UserID(c), 100)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.TransactionResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, dto.TransactionResponse{
			ID:          t.ID,
			Type:        string(t.Type),
			Amount:      t.Amount,
			Description: t.Description,
			CreatedAt:   t.CreatedAt.Format(timeLayout),
		})
	}
	c.JSON(http.StatusOK, gin.H{"transactions": resp, "total": len(resp)})
}
