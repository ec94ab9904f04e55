package roomhandler

import (
	"net/http"

	"collabhub/internal/ws"

	"github.com/gin-gonic/gin"
)

// RoomInspector is the read-only view of the hub the handler needs.
type RoomInspector interface {
	Rooms() []ws.RoomStats
	Presence(roomID ws.RoomID) ([]ws.UserView, bool)
}

type Handler struct {
	hub RoomInspector
}

func New(hub RoomInspector) *Handler { return &Handler{hub: hub} }

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.GET("/rooms/:id/presence", h.presence)
}

// @Summary		List active rooms
// @Description	Rooms with at least one live connection, ordered by id.
// @Tags			Rooms
// @Param			limit	query		int	false	"Max results (0‑500)"	minimum(0)	maximum(500)	default(50)
// @Param			offset	query		int	false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{object}	ListRoomsResponse
// @Failure		400		{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	var q ListRoomsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	all := h.hub.Rooms()
	c.JSON(http.StatusOK, ListRoomsResponse{
		Total: len(all),
		Rooms: page(all, q.Limit, q.Offset),
	})
}

// @Summary		Room presence
// @Description	Current presence snapshot of one active room.
// @Tags			Rooms
// @Param			id	path		string	true	"Project ID"	default(1)
// @Success		200	{object}	PresenceResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/rooms/{id}/presence [get]
func (h *Handler) presence(c *gin.Context) {
	id := ws.RoomID(c.Param("id"))
	users, ok := h.hub.Presence(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room " + string(id) + " not active"})
		return
	}
	c.JSON(http.StatusOK, PresenceResponse{RoomID: id, ActiveUsers: users})
}

func page(rooms []ws.RoomStats, limit, offset int) []ws.RoomStats {
	if limit == 0 {
		limit = 50
	}
	if offset >= len(rooms) {
		return []ws.RoomStats{}
	}
	end := offset + limit
	if end > len(rooms) {
		end = len(rooms)
	}
	return rooms[offset:end]
}
