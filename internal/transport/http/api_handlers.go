package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/cardroom-server/internal/auth"
	"github.com/vovakirdan/cardroom-server/internal/core"
	"github.com/vovakirdan/cardroom-server/internal/store"
)

// APIHandlers serves read-only snapshots of the server directories.
type APIHandlers struct {
	srv         *core.Server
	authService *auth.Service
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(srv *core.Server, authService *auth.Service, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		srv:         srv,
		authService: authService,
		log:         logger,
	}
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Login exchanges account credentials for a token.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnknownUser):
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
		case errors.Is(err, auth.ErrInactive):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "account not activated"})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to authenticate user")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	token, err := h.authService.IssueToken(user.Name, user.Level)
	if err != nil {
		h.log.Error().Err(err).Str("username", user.Name).Msg("failed to issue token")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// MeResponse describes the caller behind a token.
type MeResponse struct {
	UserName string          `json:"user_name"`
	Level    store.UserLevel `json:"level"`
	Guest    bool            `json:"guest"`
	Online   bool            `json:"online"`
}

// Me returns the identity carried by the request token.
// GET /api/me
func (h *APIHandlers) Me(c *gin.Context) {
	name := c.GetString(ContextKeyUserName)
	level, _ := c.Get(ContextKeyLevel)
	lvl, _ := level.(store.UserLevel)
	c.JSON(http.StatusOK, MeResponse{
		UserName: name,
		Level:    lvl,
		Guest:    c.GetBool(ContextKeyIsGuest),
		Online:   h.srv.SessionByName(name) != nil,
	})
}

// ListRooms returns every room.
// GET /api/rooms
func (h *APIHandlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Rooms())
}

// GetRoom returns one room with its users and games.
// GET /api/rooms/:id
func (h *APIHandlers) GetRoom(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return
	}
	room, ok := h.srv.Room(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// GamesOfUser returns the games a user sits in.
// GET /api/users/:name/games
func (h *APIHandlers) GamesOfUser(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.GamesOfUser(c.Param("name")))
}

// ListUsers returns the logged-in users.
// GET /api/users
func (h *APIHandlers) ListUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Users())
}

// ListSessions returns every connection with its rooms and seats.
// GET /api/sessions
func (h *APIHandlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, h.srv.Sessions())
}
