package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/ledger"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/pipeline"
	"github.com/your-org/photomarket/internal/storage"
)

const timeLayout = "2006-01-02T15:04:05Z"

var errorStatus = []struct {
	err    error
	status int
}{
	{ledger.ErrForbidden, http.StatusForbidden},
	{ledger.ErrQuotaExceeded, http.StatusForbidden},
	{ledger.ErrPurchaseNotFound, http.StatusNotFound},
	{ledger.ErrWithdrawalNotFound, http.StatusNotFound},
	{ledger.ErrRequestNotFound, http.StatusNotFound},
	{ledger.ErrPhotoUnavailable, http.StatusNotFound},
	{storage.ErrNotFound, http.StatusNotFound},
	{ledger.ErrAlreadyPurchased, http.StatusConflict},
	{ledger.ErrDuplicateRequest, http.StatusConflict},
	{ledger.ErrAlreadyResolved, http.StatusConflict},
	{ledger.ErrNotPending, http.StatusConflict},
	{ledger.ErrInvalidTransition, http.StatusConflict},
	{storage.ErrDuplicate, http.StatusConflict},
	{matching.ErrRematchRunning, http.StatusConflict},
	{ledger.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{ledger.ErrInvalidAmount, http.StatusUnprocessableEntity},
	{ledger.ErrBankCardRequired, http.StatusUnprocessableEntity},
	{pipeline.ErrUnreadableImage, http.StatusUnprocessableEntity},
	{pipeline.ErrNoSelfie, http.StatusUnprocessableEntity},
}

// respondError maps domain errors onto HTTP statuses. Anything unknown is
// logged and reported as a 500 without details.
func respondError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func paramUUID(c *gin.Context, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + what + " id"})
		return uuid.Nil, false
	}
	return id, true
}

// URLSigner is implemented by object stores that can hand out temporary links.
type URLSigner interface {
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

const previewURLTTL = time.Hour

func presign(ctx context.Context, objects any, key string) string {
	signer, ok := objects.(URLSigner)
	if !ok || key == "" {
		return ""
	}
	url, err := signer.PresignedURL(ctx, key, previewURLTTL)
	if err != nil {
		slog.Warn("presign object", "key", key, "error", err)
		return ""
	}
	return url
}
