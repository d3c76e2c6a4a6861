package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

type CancelController struct {
	sessions *session.Registry
}

func NewCancelController(sessions *session.Registry) *CancelController {
	return &CancelController{
		sessions: sessions,
	}
}

func (ctrl *CancelController) HandleCancel(c *gin.Context) {
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		sessionId = c.PostForm("sessionId")
	}
	if sessionId == "" {
		tool.DefaultLogger.Errorf("Missing required parameter: sessionId")
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing parameters"))
		return
	}

	tool.DefaultLogger.Infof("[Cancel] Received cancel request: sessionId=%s", sessionId)
	aborted, ok := ctrl.sessions.Cancel(sessionId)
	if !ok {
		c.JSON(http.StatusNotFound, tool.FastReturnError("session not found"))
		return
	}
	c.JSON(http.StatusOK, types.CancelResponse{SessionId: sessionId, Cancelled: aborted})
}
