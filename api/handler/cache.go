package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openregistry/consulta/cache"
	"github.com/openregistry/consulta/consult"
	"github.com/openregistry/consulta/models"
)

// CacheDelete returns a handler for DELETE /api/v1/cache/:id.
func CacheDelete(store *cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := consult.NormalizeID(c.Param("id"))
		if err != nil {
			respondError(c, err, models.TimingInfo{})
			return
		}

		if err := store.Delete(id); err != nil {
			respondError(c, models.NewConsultError(models.ErrCodeInternal,
				"failed to delete cache entry", err), models.TimingInfo{})
			return
		}

		c.JSON(http.StatusOK, gin.H{"deleted": id})
	}
}

// CacheStats returns a handler for GET /api/v1/cache/stats.
func CacheStats(store *cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.CacheStatsResponse{
			Entries: store.Len(),
			Dir:     store.Dir(),
		})
	}
}
