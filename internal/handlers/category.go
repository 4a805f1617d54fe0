package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expiryeaze/internal/models"
)

func GetCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "groups": models.CategoryGroups})
	}
}
