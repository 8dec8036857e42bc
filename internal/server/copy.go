package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	copydomain "github.com/flowmarket/flowmarket/internal/copyledger/domain"
	"github.com/flowmarket/flowmarket/internal/usercontext"
)

func (s *Server) CreateCopy(c *gin.Context) {
	var req copydomain.CreateCopyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.copySvc.Copy(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) ListCopies(c *gin.Context) {
	var req copydomain.ListCopiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// Callers only ever see their own ledger entries.
	userID, ok := usercontext.UserIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if req.UserID != "" && req.UserID != userID.String() {
		AbortWithError(c, ErrForbidden)
		return
	}
	req.UserID = userID.String()

	resp, err := s.copySvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
