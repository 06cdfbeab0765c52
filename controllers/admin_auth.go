package controllers

import (
	"os"
	"time"

	"github.com/donatehub/donatehub/config"
	"github.com/donatehub/donatehub/models"
	"github.com/donatehub/donatehub/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AdminLoginRequest represents the login form data
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin authenticates an administrator and issues a JWT
func AdminLogin(c *gin.Context) {
	utils.LogInfo("AdminLogin called")

	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid credentials format", err.Error())
		return
	}

	var admin models.Admin
	if err := config.DB.Where("email = ? AND is_active = ?", req.Email, true).First(&admin).Error; err != nil {
		utils.LogError("Admin login failed for %s: account not found", req.Email)
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, admin.Password) {
		utils.LogError("Admin login failed for %s: wrong password", req.Email)
		utils.Unauthorized(c, "Invalid email or password")
		return
	}

	token, err := utils.GenerateAdminToken(admin.ID, admin.Email)
	if err != nil {
		utils.LogError("Token generation failed for admin %d: %v", admin.ID, err)
		utils.InternalServerError(c, "Failed to generate token", nil)
		return
	}

	config.DB.Model(&admin).Update("last_login", time.Now())
	utils.LogInfo("Admin %s logged in", admin.Email)

	utils.Success(c, "Login successful", gin.H{
		"token": token,
		"admin": gin.H{
			"id":         admin.ID,
			"email":      admin.Email,
			"first_name": admin.FirstName,
			"last_name":  admin.LastName,
		},
	})
}

// EnsureDefaultAdmin seeds the first administrator account from the
// environment on startup. Does nothing when an admin already exists or
// when the variables are unset.
func EnsureDefaultAdmin() {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	var existing models.Admin
	err := config.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		utils.LogError("Default admin lookup failed: %v", err)
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		utils.LogError("Default admin password hashing failed: %v", err)
		return
	}

	admin := models.Admin{
		Email:     email,
		Password:  hash,
		FirstName: "Admin",
		IsActive:  true,
	}
	if err := config.DB.Create(&admin).Error; err != nil {
		utils.LogError("Default admin creation failed: %v", err)
		return
	}
	utils.LogInfo("Default admin account created for %s", email)
}
