package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/geekydillip/Market-Pulse-AI-sub000/output"
	"github.com/geekydillip/Market-Pulse-AI-sub000/pipeline"
	"github.com/geekydillip/Market-Pulse-AI-sub000/processors"
	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/sheet"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

// multipartOverhead is the room left for form fields and part headers on top of the
// file size limit.
const multipartOverhead = 64 << 10

type ProcessController struct {
	orch      *pipeline.Orchestrator
	store     *output.Store
	baseURL   string
	maxUpload int64
	logger    *log.Logger
}

func NewProcessController(orch *pipeline.Orchestrator, store *output.Store, baseURL string, maxUpload int64, logger *log.Logger) *ProcessController {
	if logger == nil {
		logger = tool.DefaultLogger
	}
	return &ProcessController{
		orch:      orch,
		store:     store,
		baseURL:   baseURL,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

// HandleProcess runs an uploaded spreadsheet through a processing type and stores the
// styled result. Multipart fields: file, processingType, model, sessionId.
func (ctrl *ProcessController) HandleProcess(c *gin.Context) {
	if ctrl.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, ctrl.maxUpload+multipartOverhead)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnError(
				fmt.Sprintf("File too large: limit %d bytes", ctrl.maxUpload)))
			return
		}
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Missing file"))
		return
	}
	if ctrl.maxUpload > 0 && file.Size > ctrl.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, tool.FastReturnError(
			fmt.Sprintf("File too large: %d bytes, limit %d", file.Size, ctrl.maxUpload)))
		return
	}

	typeName := c.PostForm("processingType")
	proc, err := processors.Lookup(typeName)
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnErrorWithData("Unknown processing type: "+typeName, map[string]any{
			"available": processors.Names(),
		}))
		return
	}
	model := c.PostForm("model")
	sessionId := c.PostForm("sessionId")

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, tool.FastReturnError("Failed to read upload"))
		return
	}
	defer func() {
		if err := src.Close(); err != nil {
			ctrl.logger.Errorf("Failed to close upload: %v", err)
		}
	}()

	table, err := sheet.Read(src, file.Filename)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sheet.ErrUnsupported) {
			status = http.StatusUnsupportedMediaType
		}
		ctrl.logger.Warnf("[Process] Rejected %s: %v", file.Filename, err)
		c.JSON(status, tool.FastReturnError(err.Error()))
		return
	}
	ctrl.logger.Infof("[Process] %s: %d row(s) from sheet %q as %s", file.Filename, len(table.Rows), table.Sheet, proc.Name())

	ctx := c.Request.Context()
	res, err := ctrl.orch.Process(ctx, pipeline.Request{
		SessionID:  sessionId,
		Model:      model,
		Processor:  proc,
		Rows:       table.Rows,
		SourceFile: file.Filename,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrSessionActive) {
			status = http.StatusConflict
		}
		c.JSON(status, tool.FastReturnError(err.Error()))
		return
	}

	workbook, err := sheet.WriteXLSX(res.Columns, res.Rows)
	if err != nil {
		ctrl.logger.Errorf("[Process] Failed to render workbook for %s: %v", res.SessionID, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to render output"))
		return
	}
	name := tool.OutputFileName(file.Filename, proc.Name(), time.Now())
	artifact, err := ctrl.store.Save(ctx, name, workbook, res.Log)
	if err != nil {
		ctrl.logger.Errorf("[Process] Failed to save output for %s: %v", res.SessionID, err)
		c.JSON(http.StatusInternalServerError, tool.FastReturnError("Failed to save output"))
		return
	}

	c.JSON(http.StatusOK, types.ProcessResponse{
		DownloadId:  artifact.ID,
		DownloadUrl: tool.BuildDownloadURL(ctrl.baseURL, artifact.ID),
		LogUrl:      tool.BuildLogURL(ctrl.baseURL, artifact.ID),
		FileName:    artifact.FileName,
		Log:         res.Log,
	})
}
