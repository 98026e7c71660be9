package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/ledger"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/pkg/dto"
)

type LedgerHandler struct {
	ledger  *ledger.Service
	objects storage.ObjectStore
}

func NewLedgerHandler(l *ledger.Service, objects storage.ObjectStore) *LedgerHandler {
	return &LedgerHandler{ledger: l, objects: objects}
}

func purchaseResponse(p *models.Purchase) dto.PurchaseResponse {
	resp := dto.PurchaseResponse{
		ID:            p.ID,
		PhotoID:       p.PhotoID,
		Amount:        p.Amount,
		Status:        string(p.Status),
		DownloadCount: p.DownloadCount,
		MaxDownloads:  p.MaxDownloads,
		CreatedAt:     p.CreatedAt.Format(timeLayout),
	}
	switch p.Status {
	case models.PurchaseStatusPaid:
		resp.DownloadURL = fmt.Sprintf("/v1/purchases/%s/download/%s", p.ID, p.DownloadToken)
	case models.PurchaseStatusPending:
		resp.PaymentURL = p.PaymentURL
	}
	return resp
}

func (h *LedgerHandler) Purchase(c *gin.Context) {
	photoID, ok := paramUUID(c, "id", "photo")
	if !ok {
		return
	}

	p, err := h.ledger.Purchase(c.Request.Context(), auth.UserID(c), photoID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchaseResponse(p))
}

func (h *LedgerHandler) GetPurchase(c *gin.Context) {
	id, ok := paramUUID(c, "id", "purchase")
	if !ok {
		return
	}

	p, err := h.ledger.GetPurchase(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchaseResponse(p))
}

// Download streams the original of a paid photo and counts the download.
func (h *LedgerHandler) Download(c *gin.Context) {
	purchaseID, ok := paramUUID(c, "id", "purchase")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	_, photo, err := h.ledger.Download(ctx, purchaseID, c.Param("token"), auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	data, err := h.objects.GetObject(ctx, photo.OriginalKey)
	if err != nil {
		respondError(c, err)
		return
	}

	name := photo.OriginalName
	if name == "" {
		name = photo.ID.String() + ".jpg"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

func (h *LedgerHandler) RequestDeletion(c *gin.Context) {
	photoID, ok := paramUUID(c, "id", "photo")
	if !ok {
		return
	}

	var req dto.DeletionRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.ledger.RequestDeletion(c.Request.Context(), photoID, auth.UserID(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deletionResponse(r))
}

func (h *LedgerHandler) ResolveDeletion(c *gin.Context) {
	id, ok := paramUUID(c, "id", "deletion request")
	if !ok {
		return
	}

	var req dto.ResolveDeletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := h.ledger.ResolveDeletion(c.Request.Context(), id, auth.UserID(c), req.Action == "approve", req.Response)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletionResponse(r))
}

func (h *LedgerHandler) GetDeletionRequest(c *gin.Context) {
	id, ok := paramUUID(c, "id", "deletion request")
	if !ok {
		return
	}

	r, err := h.ledger.GetDeletionRequest(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, deletionResponse(r))
}

func deletionResponse(r *models.DeletionRequest) dto.DeletionRequestResponse {
	return dto.DeletionRequestResponse{
		ID:       r.ID,
		PhotoID:  r.PhotoID,
		Status:   string(r.Status),
		Reason:   r.Reason,
		Response: r.Response,
	}
}

func (h *LedgerHandler) RequestWithdrawal(c *gin.Context) {
	var req dto.WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.ledger.RequestWithdrawal(c.Request.Context(), auth.UserID(c), req.Amount, req.BankCard)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawalResponse(w))
}

func (h *LedgerHandler) GetWithdrawal(c *gin.Context) {
	id, ok := paramUUID(c, "id", "withdrawal")
	if !ok {
		return
	}

	w, err := h.ledger.GetWithdrawal(c.Request.Context(), id, auth.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawalResponse(w))
}

func withdrawalResponse(w *models.Withdrawal) dto.WithdrawalResponse {
	return dto.WithdrawalResponse{
		ID:              w.ID,
		Amount:          w.Amount,
		BankCard:        w.BankCard,
		Status:          string(w.Status),
		RejectionReason: w.RejectionReason,
		CreatedAt:       w.CreatedAt.Format(timeLayout),
	}
}

// PaymentWebhook applies a provider notification. Unknown events and payments
// are acknowledged so the provider stops resending them.
func (h *LedgerHandler) PaymentWebhook(c *gin.Context) {
	var req dto.PaymentWebhook
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.ledger.HandlePaymentEvent(c.Request.Context(), req.Event, req.Object.ID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
