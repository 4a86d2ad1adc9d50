package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the data payload of the standard success envelope.
type Response map[string]interface{}

// Business codes returned alongside HTTP status so clients can branch
// without parsing messages.
const (
	CodeOK                = 0
	CodeInvalidParam      = 40001
	CodeAuth              = 40101
	CodeTwoFactorRequired = 40102
	CodeVerification      = 40103
	CodeNotFound          = 40401
	CodeConflict          = 40901
	CodeServerErr         = 50001
)

// Success writes the standard 200 envelope.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Created writes the standard 201 envelope.
func Created(c *gin.Context, data Response) {
	c.JSON(http.StatusCreated, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes the standard error envelope.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}
