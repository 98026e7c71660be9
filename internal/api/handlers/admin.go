package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/auth"
	"github.com/your-org/photomarket/internal/ledger"
	"github.com/your-org/photomarket/internal/matching"
	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/queue"
	"github.com/your-org/photomarket/pkg/dto"
)

type AdminHandler struct {
	index  *matching.Service
	ledger *ledger.Service
	tasks  queue.TaskPublisher
}

// NewAdminHandler builds operator endpoints. A nil tasks publisher runs
// rematches inside the request.
func NewAdminHandler(index *matching.Service, l *ledger.Service, tasks queue.TaskPublisher) *AdminHandler {
	return &AdminHandler{index: index, ledger: l, tasks: tasks}
}

func (h *AdminHandler) Rematch(c *gin.Context) {
	var req dto.RematchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if h.tasks != nil {
		task := models.NewTask(models.TaskRematchAll, uuid.Nil)
		task.Reassign = req.Reassign
		if err := h.tasks.PublishTask(c.Request.Context(), task); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"task_id": task.ID})
		return
	}

	stats, err := h.index.RematchAll(c.Request.Context(), matching.RematchOptions{Reassign: req.Reassign})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *AdminHandler) SetWithdrawalStatus(c *gin.Context) {
	id, ok := paramUUID(c, "id", "withdrawal")
	if !ok {
		return
	}

	var req dto.WithdrawalStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	w, err := h.ledger.UpdateWithdrawalStatus(c.Request.Context(), id, models.WithdrawalStatus(req.Status), auth.AdminName(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, withdrawalResponse(w))
}
