package httptransport

import "github.com/gin-gonic/gin"

// RespondError reports a failure using the {"error": ...} shape the client
// expects on every endpoint.
func RespondError(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, gin.H{"error": message})
}
