package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/photomarket/internal/models"
	"github.com/your-org/photomarket/internal/storage"
	"github.com/your-org/photomarket/pkg/dto"
)

type EventHandler struct {
	db storage.Store
}

func NewEventHandler(db storage.Store) *EventHandler {
	return &EventHandler{db: db}
}

func eventResponse(e *models.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:           e.ID,
		Name:         e.Name,
		EventType:    e.EventType,
		City:         e.City,
		Date:         e.Date.Format(time.DateOnly),
		DefaultPrice: e.DefaultPrice,
		IsPublic:     e.IsPublic,
		PhotosCount:  e.PhotosCount,
		CreatedAt:    e.CreatedAt.Format(timeLayout),
	}
}

func (h *EventHandler) Create(c *gin.Context) {
	pg, ok := currentPhotographer(c, h.db)
	if !ok {
		return
	}

	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	event := &models.Event{
		ID:             uuid.New(),
		PhotographerID: pg.ID,
		Name:           req.Name,
		EventType:      req.EventType,
		City:           req.City,
		Date:           date,
		DefaultPrice:   pg.DefaultPrice,
		IsPublic:       req.IsPublic,
	}
	if req.DefaultPrice != nil {
		if !req.DefaultPrice.IsPositive() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "default_price must be positive"})
			return
		}
		event.DefaultPrice = *req.DefaultPrice
	}

	if err := h.db.CreateEvent(c.Request.Context(), event); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, eventResponse(event))
}

func (h *EventHandler) Get(c *gin.Context) {
	id, ok := paramUUID(c, "id", "event")
	if !ok {
		return
	}

	event, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if event == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}
	c.JSON(http.StatusOK, eventResponse(event))
}
