package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/service"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

// AuthHandler exposes login and school switching.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Login godoc
// @Summary Sign in with an access code
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.LoginRequest true "Access code and school"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req service.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	result, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Switch godoc
// @Summary Switch school or academic year
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.SwitchRequest true "Target school and year"
// @Success 200 {object} response.Envelope
// @Router /auth/switch [post]
func (h *AuthHandler) Switch(c *gin.Context) {
	var req service.SwitchRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	result, err := h.auth.Switch(c.Request.Context(), sessionFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Me godoc
// @Summary Current session
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	sess := sessionFromContext(c)
	if sess == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"user":         service.NewUserView(*sess.User),
		"school":       sess.SelectedSchool,
		"academicYear": sess.AcademicYear,
		"schools":      sess.Schools,
	}, nil)
}
