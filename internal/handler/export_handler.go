package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-grading-api/internal/models"
	"github.com/noah-isme/sma-grading-api/internal/service"
	appErrors "github.com/noah-isme/sma-grading-api/pkg/errors"
	"github.com/noah-isme/sma-grading-api/pkg/response"
)

type exportService interface {
	Render(ctx context.Context, actor *models.JWTClaims, classID, termID string, format models.ExportFormat) (*service.ExportFile, error)
	CreateJob(ctx context.Context, actor *models.JWTClaims, classID, termID string, format models.ExportFormat) (*models.ExportJob, error)
	GetJob(ctx context.Context, actor *models.JWTClaims, id string) (*models.ExportJob, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes grade sheet export endpoints.
type ExportHandler struct {
	exports exportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports exportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

type exportJobRequest struct {
	Format string `json:"format" binding:"required"`
}

// Download godoc
// @Summary Download grade sheet
// @Description Renders the grade sheet synchronously
// @Tags Exports
// @Produce octet-stream
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /classes/{classId}/terms/{termId}/export [get]
func (h *ExportHandler) Download(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	format := parseFormat(c.DefaultQuery("format", string(models.ExportFormatCSV)))
	file, err := h.exports.Render(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// CreateJob godoc
// @Summary Queue grade sheet export
// @Tags Exports
// @Accept json
// @Produce json
// @Param classId path string true "Class ID"
// @Param termId path string true "Term ID"
// @Param payload body exportJobRequest true "Export format"
// @Success 202 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /classes/{classId}/terms/{termId}/exports [post]
func (h *ExportHandler) CreateJob(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req exportJobRequest
	if !bindJSON(c, &req) {
		return
	}
	job, err := h.exports.CreateJob(c.Request.Context(), claims, c.Param("classId"), c.Param("termId"), parseFormat(req.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, job, nil)
}

// JobStatus godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) JobStatus(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	job, err := h.exports.GetJob(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// SignedDownload godoc
// @Summary Download a finished export
// @Description The signed token authorises the download
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) SignedDownload(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.exports.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export file"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), result.ContentType, result.File, nil)
}

func parseFormat(raw string) models.ExportFormat {
	return models.ExportFormat(strings.ToLower(strings.TrimSpace(raw)))
}
