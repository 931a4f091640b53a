package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"aligncall/internal/transport/http/response"
)

const WebhookSecretHeader = "x-vapi-secret"

// WebhookSecret rejects voice platform callbacks that do not carry the shared
// secret. An empty secret disables the check.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}
		got := c.GetHeader(WebhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			response.Error(c, http.StatusUnauthorized, response.CodeBadWebhookSecret, "invalid webhook secret")
			c.Abort()
			return
		}
		c.Next()
	}
}
