package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailingest/internal/utils"
)

var userIdHeaders = []string{"X-USER-ID", "X-OPENLINE-USER-ID"}

// CustomContextMiddleware stamps the app source and caller user id on the request context
func CustomContextMiddleware(appSource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := ""
		for _, header := range userIdHeaders {
			if value := c.GetHeader(header); value != "" {
				userId = value
				break
			}
		}

		ctx := utils.WithCustomContext(c.Request.Context(), &utils.CustomContext{
			AppSource: appSource,
			UserId:    userId,
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
