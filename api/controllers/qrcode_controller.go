package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
)

const (
	defaultQRSize = 200
	maxQRSize     = 512
)

// HandleQRCode returns a PNG QR code of the download URL so a phone on the same network
// can fetch the result. Optional ?size=200x200 or ?size=200.
func (ctrl *DownloadController) HandleQRCode(c *gin.Context) {
	a, ok := ctrl.artifact(c)
	if !ok {
		return
	}

	size := min(parseSize(c.Query("size")), maxQRSize)
	if size == 0 {
		size = defaultQRSize
	}

	png, err := qrcode.Encode(tool.BuildDownloadURL(ctrl.baseURL, a.ID), qrcode.Medium, size)
	if err != nil {
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to encode QR code: "+err.Error()))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// parseSize reads "256" or "256x256"; only the first dimension counts since QR codes
// are square. Invalid input yields 0.
func parseSize(s string) int {
	w, _, _ := strings.Cut(strings.TrimSpace(s), "x")
	n, err := strconv.Atoi(strings.TrimSpace(w))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
