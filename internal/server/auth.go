package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// compared against for unknown users
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unused"), bcrypt.DefaultCost)

// login godoc
// @Summary Check credentials
// @Tags Auth
// @Accept json
// @Produce plain
// @Param request body LoginRequest true "Credentials"
// @Success 200 {string} string "Login successful"
// @Failure 401 {string} string "Invalid credentials"
// @Router /login [post]
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "username and password are required"})
		return
	}

	if !s.checkCredentials(req.Username, req.Password) {
		slog.Info("Rejected login", "username", req.Username)
		c.String(http.StatusUnauthorized, "Invalid credentials")
		return
	}

	c.String(http.StatusOK, "Login successful")
}

func (s *Server) checkCredentials(username, password string) bool {
	hash, ok := s.users[username]
	if !ok {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
