package handler

import (
	"net/http"
	"strings"

	"savepass/internal/middleware"
	"savepass/internal/models"
	"savepass/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func userProjection(user *models.User) gin.H {
	return gin.H{
		"id":              user.ID,
		"email":           user.Email,
		"firstName":       user.FirstName,
		"lastName":        user.LastName,
		"profilePhotoUrl": user.ProfilePhotoURL,
		"createdAt":       user.CreatedAt,
		"updatedAt":       user.UpdatedAt,
	}
}

// GetMe returns the current account's profile. Credential material and key
// bindings never appear here.
func GetMe(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
		return
	}

	util.Success(c, util.Response{
		"user": userProjection(user),
	})
}

type updateProfileReq struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// UpdateProfile updates the account's name fields.
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		if user == nil {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "You are not logged in! Please log in to get access.")
			return
		}

		var req updateProfileReq
		if err := c.ShouldBindJSON(&req); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Invalid request body")
			return
		}

		req.FirstName = strings.TrimSpace(req.FirstName)
		req.LastName = strings.TrimSpace(req.LastName)

		if req.FirstName == "" {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "firstName is mandatory!")
			return
		}

		if err := db.Model(user).Updates(map[string]interface{}{
			"first_name": req.FirstName,
			"last_name":  req.LastName,
		}).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "Failed to update profile")
			return
		}

		user.FirstName = req.FirstName
		user.LastName = req.LastName

		util.Success(c, util.Response{
			"user": userProjection(user),
		})
	}
}
