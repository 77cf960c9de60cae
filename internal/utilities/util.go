// Package utilities contain utility code that use across the package
package utilities

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the error envelope of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is the envelope of simple confirmation responses
type MessageResponse struct {
	Message string `json:"message"`
}

// ExtractBearerToken pulls the bearer token out of the Authorization header.
func ExtractBearerToken(c *gin.Context) (string, error) {

	const BearerSchema = "Bearer "
	authHeader := c.GetHeader("Authorization")

	if len(authHeader) <= len(BearerSchema) {
		return "", fmt.Errorf("Invalid authorization header")
	}

	return authHeader[len(BearerSchema):], nil
}
