package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "warelog/internal/core/context"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// Actor middleware resolves who performs the request.
// The caller identifies itself via headers set by the API gateway;
// unauthenticated requests are stamped as anonymous.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(HeaderUserID)
		if userID == "" {
			userID = "anonymous"
		}

		actor := &appctx.Actor{
			UserID: userID,
			Name:   c.GetHeader(HeaderUserName),
			Source: "api",
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Set("user_id", userID)

		c.Next()
	}
}
