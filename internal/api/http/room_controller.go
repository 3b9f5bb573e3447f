package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luciandrev/estudia_rooms/internal/api/http/converter"
	"github.com/luciandrev/estudia_rooms/internal/repository"
	"github.com/luciandrev/estudia_rooms/internal/service"
)

type RoomController struct {
	rooms service.RoomInteractor
}

func NewRoomController(rooms service.RoomInteractor) *RoomController {
	return &RoomController{rooms: rooms}
}

func (c *RoomController) CreateRoom(ctx *gin.Context) {
	type CreateRoomRequest struct {
		Name            string `json:"name" binding:"required"`
		SubjectID       string `json:"subject_id"`
		MaxParticipants int    `json:"max_participants"`
	}
	var req CreateRoomRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var subjectID *uuid.UUID
	if req.SubjectID != "" {
		id, err := uuid.Parse(req.SubjectID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject uuid", "details": err.Error()})
			return
		}
		subjectID = &id
	}

	room, err := c.rooms.CreateRoom(ctx.Request.Context(), req.Name, subjectID, req.MaxParticipants)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrAlreadyInRoom) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) ListRooms(ctx *gin.Context) {
	rooms, err := c.rooms.ListRooms(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"rooms": converter.RoomsToApi(rooms)})
}

func (c *RoomController) CurrentRoom(ctx *gin.Context) {
	room := c.rooms.CurrentRoom()
	if room == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "not in a room"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) JoinRoom(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	// The body is optional; without it the participant inherits the room's subject.
	type JoinRoomRequest struct {
		SubjectID string `json:"subject_id"`
	}
	var req JoinRoomRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	var subjectID *uuid.UUID
	if req.SubjectID != "" {
		id, err := uuid.Parse(req.SubjectID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject uuid"})
			return
		}
		subjectID = &id
	}

	room, err := c.rooms.JoinRoom(ctx.Request.Context(), roomID, subjectID)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrRoomNotActive):
			status = http.StatusGone
		case errors.Is(err, service.ErrRoomFull), errors.Is(err, service.ErrAlreadyInRoom):
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"room": converter.RoomToApi(room)})
}

func (c *RoomController) LeaveRoom(ctx *gin.Context) {
	if err := c.rooms.LeaveRoom(ctx.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotInRoom) {
			status = http.StatusConflict
		}
		ctx.JSON(status, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "left"})
}

func (c *RoomController) ListParticipants(ctx *gin.Context) {
	roomID, err := uuid.Parse(ctx.Param("roomID"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}

	participants, err := c.rooms.ListParticipants(ctx.Request.Context(), roomID)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"participants": converter.ParticipantsToApi(participants)})
}

func (c *RoomController) ToggleAudio(ctx *gin.Context) {
	enabled, err := c.rooms.ToggleAudio(ctx.Request.Context())
	if err != nil {
		c.mediaError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"audio_enabled": enabled})
}

func (c *RoomController) ToggleVideo(ctx *gin.Context) {
	enabled, err := c.rooms.ToggleVideo(ctx.Request.Context())
	if err != nil {
		c.mediaError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"video_enabled": enabled})
}

func (c *RoomController) StartScreenShare(ctx *gin.Context) {
	ok, err := c.rooms.StartScreenShare(ctx.Request.Context())
	if err != nil {
		c.mediaError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sharing": ok})
}

func (c *RoomController) StopScreenShare(ctx *gin.Context) {
	if err := c.rooms.StopScreenShare(ctx.Request.Context()); err != nil {
		c.mediaError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"sharing": false})
}

func (c *RoomController) SetSubject(ctx *gin.Context) {
	type SetSubjectRequest struct {
		SubjectID string `json:"subject_id"`
	}
	var req SetSubjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	var subjectID *uuid.UUID
	if req.SubjectID != "" {
		id, err := uuid.Parse(req.SubjectID)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid subject uuid"})
			return
		}
		subjectID = &id
	}

	if err := c.rooms.SetSubject(ctx.Request.Context(), subjectID); err != nil {
		c.mediaError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (c *RoomController) mediaError(ctx *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, service.ErrNotInRoom) {
		status = http.StatusConflict
	}
	ctx.JSON(status, gin.H{"error": err.Error()})
}
