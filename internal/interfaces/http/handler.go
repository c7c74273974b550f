package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmanzanog/instrument-registry/internal/application"
	"github.com/jmanzanog/instrument-registry/internal/domain"
)

// InstrumentService defines the interface for instrument operations
type InstrumentService interface {
	List(ctx context.Context, filter application.ListFilter) ([]domain.Instrument, error)
	Get(ctx context.Context, id int64) (domain.Instrument, error)
	Create(ctx context.Context, inst domain.Instrument) (domain.Instrument, error)
	Update(ctx context.Context, id int64, patch domain.InstrumentPatch) (domain.Instrument, error)
	Delete(ctx context.Context, id int64) error
	Health(ctx context.Context) error
}

type PriceRefresher interface {
	RefreshPrices(ctx context.Context) (application.RefreshReport, error)
}

type Handler struct {
	instrumentService InstrumentService
	priceRefresher    PriceRefresher
}

// NewHandler wires the handler. priceRefresher may be nil when no market data
// service is configured.
func NewHandler(instrumentService InstrumentService, priceRefresher PriceRefresher) *Handler {
	return &Handler{
		instrumentService: instrumentService,
		priceRefresher:    priceRefresher,
	}
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (h *Handler) ListInstruments(c *gin.Context) {
	var query ListInstrumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: requestID(c)})
		return
	}

	instruments, err := h.instrumentService.List(c.Request.Context(), query.toFilter())
	if err != nil {
		h.writeError(c, err, "Failed to list instruments")
		return
	}

	c.JSON(http.StatusOK, instruments)
}

func (h *Handler) GetInstrument(c *gin.Context) {
	id, ok := instrumentID(c)
	if !ok {
		return
	}

	inst, err := h.instrumentService.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "Failed to get instrument", "instrument_id", id)
		return
	}

	c.JSON(http.StatusOK, inst)
}

func (h *Handler) CreateInstrument(c *gin.Context) {
	var req CreateInstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(c.Request.Context(), "Invalid request body", "error", err, "request_id", requestID(c))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: requestID(c)})
		return
	}

	created, err := h.instrumentService.Create(c.Request.Context(), req.toInstrument())
	if err != nil {
		h.writeError(c, err, "Failed to create instrument", "short_name", req.ShortName)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *Handler) UpdateInstrument(c *gin.Context) {
	id, ok := instrumentID(c)
	if !ok {
		return
	}

	var patch domain.InstrumentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		slog.WarnContext(c.Request.Context(), "Invalid request body", "error", err, "request_id", requestID(c))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: requestID(c)})
		return
	}

	updated, err := h.instrumentService.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.writeError(c, err, "Failed to update instrument", "instrument_id", id)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *Handler) DeleteInstrument(c *gin.Context) {
	id, ok := instrumentID(c)
	if !ok {
		return
	}

	if err := h.instrumentService.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "Failed to delete instrument", "instrument_id", id)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) RefreshPrices(c *gin.Context) {
	if h.priceRefresher == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "price refresh is not configured", RequestID: requestID(c)})
		return
	}

	report, err := h.priceRefresher.RefreshPrices(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to refresh prices")
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.instrumentService.Health(c.Request.Context()); err != nil {
		slog.ErrorContext(c.Request.Context(), "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "unreachable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Instrument Registry API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"instruments": "/api/v1/instruments",
			"health":      "/health",
		},
	})
}

func instrumentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "instrument id must be an integer", RequestID: requestID(c)})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and answered with a generic message.
func (h *Handler) writeError(c *gin.Context, err error, msg string, attrs ...any) {
	rid := requestID(c)

	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "instrument not found", RequestID: rid})
	case errors.Is(err, domain.ErrInvalidInstrument):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), RequestID: rid})
	case errors.Is(err, domain.ErrDuplicateInstrument):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "an instrument with this ISIN already exists", RequestID: rid})
	default:
		attrs = append(attrs, "error", err, "request_id", rid)
		slog.ErrorContext(c.Request.Context(), msg, attrs...)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", RequestID: rid})
	}
}
