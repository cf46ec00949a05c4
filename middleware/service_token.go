package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd/utils"
)

// ServiceTokenHeader carries the shared secret of internal callers.
const ServiceTokenHeader = "X-Service-Token"

// ServiceTokenRequired guards internal routes that only the task workflow may call.
// An empty expected token rejects everything.
func ServiceTokenRequired(expected string) gin.HandlerFunc {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		utils.Logger.Warn("SERVICE_TOKEN is not set, internal routes will reject all requests")
	}

	return func(ctx *gin.Context) {
		token := strings.TrimSpace(ctx.GetHeader(ServiceTokenHeader))
		if token == "" {
			utils.AbortError(ctx, http.StatusUnauthorized, 40120, "service token missing")
			return
		}
		if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			utils.Logger.Warn("rejected internal request", zap.String("path", ctx.FullPath()), zap.String("client_ip", ctx.ClientIP()))
			utils.AbortError(ctx, http.StatusUnauthorized, 40121, "invalid service token")
			return
		}
		ctx.Next()
	}
}
