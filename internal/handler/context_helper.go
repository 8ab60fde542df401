package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lakewatch/lakes-portal-api/internal/middleware"
	"github.com/lakewatch/lakes-portal-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// callerIdentity reports who is making the request. Both values are zero for
// anonymous callers, which the services treat as a non-owner.
func callerIdentity(c *gin.Context) (userID string, isAdmin bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		return "", false
	}
	return claims.UserID, claims.IsAdmin()
}

// filterFromQuery extracts the shared list criteria from query parameters.
func filterFromQuery(c *gin.Context) models.RecordFilter {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	return models.RecordFilter{
		Lake:     c.Query("lake"),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
}
