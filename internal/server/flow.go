package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetFlowByID(c *gin.Context) {
	flowID := strings.TrimSpace(c.Param("id"))
	if flowID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	flow, err := s.catalogSvc.GetFlow(c.Request.Context(), flowID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, flow)
}
