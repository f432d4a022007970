package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type signedUploadRequest struct {
	Filename string `json:"filename"`
}

func (s *Server) createSignedUploadURL(c *gin.Context) {
	var req signedUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	target, err := s.recordings.CreateUploadURL(c.Request.Context(), userIDFromContext(c), req.Filename)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signedUrl": target.URL, "path": target.Path})
}

type signedURLRequest struct {
	Path string `json:"path"`
}

func (s *Server) createSignedURL(c *gin.Context) {
	var req signedURLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		badRequest(c, "path is required")
		return
	}

	url, err := s.recordings.CreateDownloadURL(c.Request.Context(), userIDFromContext(c), req.Path)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signedUrl": url})
}
