package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openregistry/consulta/extractor"
	"github.com/openregistry/consulta/models"
)

// Extract returns a handler for POST /api/v1/extract.
//
// Re-runs the record extractor over caller-supplied certificate text or raw
// HTML without touching a browser. Useful for reprocessing debug dumps or
// previously captured pages after an extraction fix.
func Extract() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewConsultError(models.ErrCodeInvalidInput,
				"invalid request body: "+err.Error(), err),
				models.TimingInfo{TotalMs: time.Since(start).Milliseconds()})
			return
		}
		if req.Text == "" && req.HTML == "" {
			respondError(c, models.NewConsultError(models.ErrCodeInvalidInput,
				"either text or html is required", nil),
				models.TimingInfo{TotalMs: time.Since(start).Milliseconds()})
			return
		}

		// Text takes precedence when both are supplied.
		var rec *models.RegistryRecord
		if req.Text != "" {
			rec = extractor.Extract(req.Text)
		} else {
			rec = extractor.ExtractHTML(req.HTML)
		}
		rec.Metadata = models.Metadata{
			Timestamp: time.Now().Format(time.RFC3339),
			Success:   true,
			Source:    "offline",
		}

		c.JSON(http.StatusOK, models.ExtractResponse{
			Success: true,
			Record:  rec,
			Timing:  models.TimingInfo{TotalMs: time.Since(start).Milliseconds()},
		})
	}
}
