package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/output"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type DownloadController struct {
	store   *output.Store
	baseURL string
}

func NewDownloadController(store *output.Store, baseURL string) *DownloadController {
	return &DownloadController{
		store:   store,
		baseURL: baseURL,
	}
}

func (ctrl *DownloadController) artifact(c *gin.Context) (*output.Artifact, bool) {
	a, err := ctrl.store.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, output.ErrNotFound) {
			c.JSON(http.StatusNotFound, tool.FastReturnError("Output not found"))
		} else {
			c.JSON(http.StatusInternalServerError, tool.FastReturnError("Internal server error"))
		}
		return nil, false
	}
	return a, true
}

// HandleDownload serves the processed workbook as an attachment.
func (ctrl *DownloadController) HandleDownload(c *gin.Context) {
	a, ok := ctrl.artifact(c)
	if !ok {
		return
	}
	tool.DefaultLogger.Infof("[Download] Serving %s (%s) to %s", a.FileName, a.ID, c.ClientIP())
	c.Header("Content-Type", xlsxContentType)
	c.FileAttachment(a.XLSXPath(), a.FileName)
}

// HandleLog serves the JSON processing log.
func (ctrl *DownloadController) HandleLog(c *gin.Context) {
	a, ok := ctrl.artifact(c)
	if !ok {
		return
	}
	plog, err := ctrl.store.Log(a.ID)
	if err != nil {
		if errors.Is(err, output.ErrNotFound) {
			c.JSON(http.StatusNotFound, tool.FastReturnError("Log not found"))
			return
		}
		tool.DefaultLogger.Errorf("[Download] Failed to read log of %s: %v", a.ID, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, plog)
}
