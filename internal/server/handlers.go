package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaki95/yt-media-server/internal/pipeline"
)

// healthCheck godoc
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// audioList godoc
// @Summary List the audio catalog
// @Description Scans the audio directory and returns one descriptor per audio file.
// @Tags Catalog
// @Produce json
// @Success 200 {array} domain.TrackDescriptor
// @Router /audioList [get]
func (s *Server) audioList(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Catalog.Build(c.Request.Context()))
}

// getChapters godoc
// @Summary Get the chapters of a track
// @Tags Catalog
// @Produce json
// @Param filename query string true "Sanitized title"
// @Success 200 {array} domain.ChapterMark
// @Failure 400 {object} ErrorResponse
// @Router /chapters [get]
func (s *Server) getChapters(c *gin.Context) {
	name := c.Query("filename")
	if name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "filename is required"})
		return
	}

	c.JSON(http.StatusOK, s.deps.Chapters.Read(name))
}

// download godoc
// @Summary Acquire audio from a video URL
// @Description Probes the URL, converts its audio into the catalog and stores its chapters.
// @Tags Acquisition
// @Accept json
// @Produce json
// @Param request body DownloadRequest true "Video URL"
// @Success 200 {object} DownloadResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 504 {object} ErrorResponse
// @Router /download [post]
func (s *Server) download(c *gin.Context) {
	var req DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "youtubeUrl is required"})
		return
	}

	result, err := s.deps.Acquirer.Acquire(c.Request.Context(), req.YoutubeURL)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{
			Error: err.Error(),
			Stage: pipeline.KindOf(err).String(),
		})
		return
	}

	c.JSON(http.StatusOK, DownloadResponse{
		Message: "Download and conversion completed",
		Result:  result,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
