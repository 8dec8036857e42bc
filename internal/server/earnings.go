package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCreatorEarnings(c *gin.Context) {
	creatorID := strings.TrimSpace(c.Param("id"))
	if creatorID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.earningsSvc.Earnings(c.Request.Context(), creatorID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
