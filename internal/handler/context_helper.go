package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/estimate-export-api/internal/middleware"
	"github.com/noah-isme/estimate-export-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

func userIDFromContext(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}
