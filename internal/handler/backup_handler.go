package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-supervision-api/internal/models"
	"github.com/noah-isme/sma-supervision-api/internal/service"
	appErrors "github.com/noah-isme/sma-supervision-api/pkg/errors"
	"github.com/noah-isme/sma-supervision-api/pkg/response"
)

type backupManager interface {
	Export(ctx context.Context, sess *models.Session, slice models.BackupSlice) (models.BackupFile, error)
	Import(ctx context.Context, sess *models.Session, file models.BackupFile, source string) (*service.BackupSummary, error)
	History(ctx context.Context, sess *models.Session) ([]service.HistoryEntry, error)
	RestoreHistory(ctx context.Context, sess *models.Session, id string) (*service.BackupSummary, error)
}

// BackupHandler exposes backup export, import and the rotating history.
type BackupHandler struct {
	backups backupManager
}

// NewBackupHandler constructs a BackupHandler.
func NewBackupHandler(backups backupManager) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// Export godoc
// @Summary Download a backup file
// @Tags Backups
// @Produce json
// @Param slice query string false "full, teacher:<id>, school:<name> or evaluation_type:<type>"
// @Success 200 {file} file
// @Router /backups/export [get]
func (h *BackupHandler) Export(c *gin.Context) {
	slice, err := service.ParseSlice(c.Query("slice"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.backups.Export(c.Request.Context(), sessionFromContext(c), slice)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := json.Marshal(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode backup"))
		return
	}
	name := slice.Kind
	if slice.Value != "" {
		name += "-" + strings.NewReplacer(" ", "_", "/", "_").Replace(slice.Value)
	}
	response.File(c, fmt.Sprintf("backup-%s-%s.json", name, time.Now().UTC().Format("20060102")), "application/json", payload)
}

// Import godoc
// @Summary Import a backup file; the replaced values are archived first
// @Tags Backups
// @Accept json
// @Produce json
// @Param payload body models.BackupFile true "Key to raw serialised value"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /backups/import [post]
func (h *BackupHandler) Import(c *gin.Context) {
	var file models.BackupFile
	if err := c.ShouldBindJSON(&file); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInvalidBackup.Code, appErrors.ErrInvalidBackup.Status, "backup file is not a JSON object of strings"))
		return
	}
	source := c.DefaultQuery("source", "upload")
	summary, err := h.backups.Import(c.Request.Context(), sessionFromContext(c), file, source)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// History godoc
// @Summary List archived import slots, newest first
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /backups/history [get]
func (h *BackupHandler) History(c *gin.Context) {
	history, err := h.backups.History(c.Request.Context(), sessionFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// Restore godoc
// @Summary Restore an archived slot
// @Tags Backups
// @Produce json
// @Param id path string true "History entry ID"
// @Success 200 {object} response.Envelope
// @Router /backups/history/{id}/restore [post]
func (h *BackupHandler) Restore(c *gin.Context) {
	summary, err := h.backups.RestoreHistory(c.Request.Context(), sessionFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
