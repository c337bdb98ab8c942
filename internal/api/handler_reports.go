package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"uptime-report-backend/internal/jobs"
	"uptime-report-backend/internal/model"
)

// TriggerReport handles POST /trigger_report.
func (h *Handler) TriggerReport(c *gin.Context) {
	id, err := h.reports.Submit(c.Request.Context())
	if err != nil {
		log.Printf("Error submitting report: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to trigger report"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report_id": id})
}

// GetReport handles GET /get_report/:report_id.
func (h *Handler) GetReport(c *gin.Context) {
	id := c.Param("report_id")
	st, err := h.reports.Poll(c.Request.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "report not found"})
		return
	}
	if err != nil {
		log.Printf("Error polling report %s: %v", id, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to read report"})
		return
	}

	switch st.State {
	case model.ReportReady:
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", st.ID))
		c.Data(http.StatusOK, "text/csv", st.Payload)
	case model.ReportFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"status": st.State, "error": st.Error})
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": st.State})
	}
}
