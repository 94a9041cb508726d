package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/blocosbh/bloco-agenda/internal/middleware"
	"github.com/blocosbh/bloco-agenda/internal/model"
	"github.com/blocosbh/bloco-agenda/internal/queue"
	"github.com/blocosbh/bloco-agenda/internal/repository"
	queue_publisher "github.com/blocosbh/bloco-agenda/internal/service"
)

// AgendaHandler serves the per-user override rows: the remote side of
// the device sync protocol, and the direct write path for clients that
// talk to the server instead of running a local engine. Every write
// stamps updated_at server-side so device merges can compare fairly.
type AgendaHandler struct {
	Overrides *repository.OverrideRepo
	Events    *repository.EventRepo
}

func NewAgendaHandler(o *repository.OverrideRepo, e *repository.EventRepo) *AgendaHandler {
	return &AgendaHandler{Overrides: o, Events: e}
}

type setStatusReq struct {
	Status model.EventStatus `json:"status"`
}

type setOverrideReq struct {
	Hidden bool    `json:"hidden"`
	Notes  *string `json:"notes"`
}

// List returns every override row owned by the authenticated user.
// GET /v1/me/agenda.
func (h *AgendaHandler) List(c echo.Context) error {
	owner := middleware.CurrentOwner(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	rows, err := h.Overrides.FetchForOwner(ctx, owner)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if rows == nil {
		rows = []model.OverrideRow{}
	}
	return c.JSON(http.StatusOK, echo.Map{"overrides": rows})
}

// SetStatus records an attendance status for one event.
// PUT /v1/me/events/:id/status.
func (h *AgendaHandler) SetStatus(c echo.Context) error {
	owner := middleware.CurrentOwner(c)
	eventID := c.Param("id")

	var req setStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !req.Status.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	row := model.OverrideRow{
		OwnerID:     owner,
		BaseEventID: eventID,
		Status:      &req.Status,
		UpdatedAt:   time.Now().UTC(),
	}
	// The upsert replaces all columns; keep whatever override fields the
	// row already carries.
	if prev, err := h.Overrides.Get(ctx, owner, eventID); err == nil {
		row.Hidden = prev.Hidden
		row.Notes = prev.Notes
	}
	if err := h.Overrides.Upsert(ctx, []model.OverrideRow{row}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "write failed"})
	}

	h.publish(c, row)
	return c.JSON(http.StatusOK, row)
}

// SetOverride records the hidden flag and note for one event. The row
// keeps its current status; none is invented when the user never chose
// one. PUT /v1/me/events/:id/override.
func (h *AgendaHandler) SetOverride(c echo.Context) error {
	owner := middleware.CurrentOwner(c)
	eventID := c.Param("id")

	var req setOverrideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	row := model.OverrideRow{
		OwnerID:     owner,
		BaseEventID: eventID,
		Hidden:      req.Hidden,
		Notes:       req.Notes,
		UpdatedAt:   time.Now().UTC(),
	}
	if prev, err := h.Overrides.Get(ctx, owner, eventID); err == nil {
		row.Status = prev.Status
	}
	if err := h.Overrides.Upsert(ctx, []model.OverrideRow{row}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "write failed"})
	}

	h.publish(c, row)
	return c.JSON(http.StatusOK, row)
}

// publish emits a status.changed message. Best-effort: publish errors
// are already logged by the publisher and never fail the request.
func (h *AgendaHandler) publish(c echo.Context, row model.OverrideRow) {
	ev := queue.StatusChangedEvent{
		OwnerID:     row.OwnerID,
		BaseEventID: row.BaseEventID,
		Hidden:      row.Hidden,
		HasNotes:    row.Notes != nil && *row.Notes != "",
		UpdatedAt:   row.UpdatedAt.Format(time.RFC3339),
	}
	if row.Status != nil {
		s := string(*row.Status)
		ev.Status = &s
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()
	if base, err := h.Events.GetByID(ctx, row.BaseEventID); err == nil {
		ev.EventTitle = base.Title
	}
	_ = queue_publisher.PublishStatusChanged(ctx, ev)
}
