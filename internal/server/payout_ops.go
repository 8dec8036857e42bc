package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// periodLayout is the wire form of a billing period: the year and month,
// interpreted as the first instant of that UTC month.
const periodLayout = "2006-01"

func parsePeriodParam(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("period"))
	if raw == "" {
		return time.Time{}, false
	}
	period, err := time.Parse(periodLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return period.UTC(), true
}

func (s *Server) AggregatePayouts(c *gin.Context) {
	period, ok := parsePeriodParam(c)
	if !ok {
		AbortWithError(c, newValidationError("period", "invalid_period", "expected YYYY-MM"))
		return
	}

	records, err := s.aggregator.AggregatePeriod(c.Request.Context(), period)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"billing_period": period,
		"records":        records,
	})
}

func (s *Server) DisbursePayouts(c *gin.Context) {
	period, ok := parsePeriodParam(c)
	if !ok {
		AbortWithError(c, newValidationError("period", "invalid_period", "expected YYYY-MM"))
		return
	}

	if err := s.disburser.DisbursePending(c.Request.Context(), period); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"billing_period": period, "status": "completed"})
}
