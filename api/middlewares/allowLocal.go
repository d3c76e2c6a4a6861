package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

// OnlyAllowLocal rejects requests that do not come from the loopback interface.
func OnlyAllowLocal(c *gin.Context) {
	if ip := c.ClientIP(); ip == "127.0.0.1" || ip == "::1" {
		c.Next()
		return
	}
	tool.DefaultLogger.Warnf("[Server] Rejected %s %s from %s", c.Request.Method, c.Request.URL.Path, c.ClientIP())
	c.AbortWithStatusJSON(http.StatusForbidden, tool.FastReturnError("Forbidden"))
}
