package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ImportData handles POST /import_data.
func (h *Handler) ImportData(c *gin.Context) {
	stats, err := h.importer.ImportOnce(c.Request.Context())
	if err != nil {
		log.Printf("Error importing data: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "Import Failed", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          "Import Successful",
		"sites":           stats.Sites,
		"samples":         stats.Samples,
		"business_hours":  stats.Hours,
		"skipped_samples": stats.SkippedSamples,
		"skipped_hours":   stats.SkippedHours,
	})
}
