package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openregistry/consulta/consult"
	"github.com/openregistry/consulta/models"
)

// Consult returns a handler for GET /api/v1/cnpj/:id.
//
// Flow:
//  1. Normalize/validate the identifier (400 on failure, nothing else runs).
//  2. Consultant.Consult — cache hit, or the full pipeline with retries.
//  3. Respond 200 with the record; terminal failure records come back with
//     success=false and the error message, never as an HTTP error.
//
// ?refresh=true bypasses the cache for this request.
func Consult(co *consult.Consultant) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		useCache := c.Query("refresh") != "true"

		rec, err := co.Consult(c.Request.Context(), c.Param("id"), useCache)
		if err != nil {
			// Only identifier validation crosses the consultant boundary.
			respondError(c, err, models.TimingInfo{
				TotalMs: time.Since(totalStart).Milliseconds(),
			})
			return
		}

		resp := models.ConsultResponse{
			Success: rec.Metadata.Success,
			Record:  rec,
			Timing: models.TimingInfo{
				TotalMs:   time.Since(totalStart).Milliseconds(),
				ConsultMs: time.Since(totalStart).Milliseconds(),
			},
		}
		if useCache {
			if rec.Metadata.Source == "cache" {
				resp.CacheStatus = "hit"
				resp.Timing.ConsultMs = 0
			} else {
				resp.CacheStatus = "miss"
			}
		}
		if !rec.Metadata.Success && rec.Error != "" {
			resp.Error = &models.ErrorDetail{
				Code:    models.ErrCodeInternal,
				Message: rec.Error,
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// respondError maps a ConsultError to the correct HTTP status code and
// writes a structured JSON error response.
func respondError(c *gin.Context, err error, timing models.TimingInfo) {
	status := http.StatusInternalServerError
	detail := &models.ErrorDetail{
		Code:    models.ErrCodeInternal,
		Message: err.Error(),
	}

	var consultErr *models.ConsultError
	if errors.As(err, &consultErr) {
		detail = consultErr.ToDetail()
		switch consultErr.Code {
		case models.ErrCodeInvalidID, models.ErrCodeInvalidInput:
			status = http.StatusBadRequest
		case models.ErrCodeUnauthorized:
			status = http.StatusUnauthorized
		case models.ErrCodeRateLimited:
			status = http.StatusTooManyRequests
		}
	}

	c.JSON(status, models.ConsultResponse{
		Success: false,
		Error:   detail,
		Timing:  timing,
	})
}
