package server

import "github.com/jaki95/yt-media-server/internal/domain"

// DownloadRequest is the body of POST /download.
type DownloadRequest struct {
	YoutubeURL string `json:"youtubeUrl" binding:"required"`
}

// DownloadResponse is returned once an acquisition completes.
type DownloadResponse struct {
	Message string                    `json:"message"`
	Result  *domain.AcquisitionResult `json:"result"`
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ErrorResponse represents a generic error payload used for error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}
