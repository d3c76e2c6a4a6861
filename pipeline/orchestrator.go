package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/geekydillip/Market-Pulse-AI-sub000/llm"
	"github.com/geekydillip/Market-Pulse-AI-sub000/normalize"
	"github.com/geekydillip/Market-Pulse-AI-sub000/notify"
	"github.com/geekydillip/Market-Pulse-AI-sub000/session"
	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

const (
	DefaultChunkSize   = 10
	DefaultConcurrency = 4
)

var (
	ErrNoProcessor = errors.New("no processor given")
	ErrNoModel     = errors.New("no model given")
)

// Generator sends one prompt to a model.
type Generator interface {
	Call(ctx context.Context, prompt, model string, opts llm.CallOptions) (any, error)
}

// Processor knows one processing type: its canonical columns, how to ask the model about
// a chunk, and how to read the answer back into rows.
type Processor interface {
	Name() string
	Schema() normalize.Schema
	BuildPrompt(rows []types.Row) string
	ParseResponse(raw any, rows []types.Row) ([]types.Row, error)
}

// Enricher rewrites a chunk's prompt before it is sent, e.g. to prepend retrieved
// context. It returns the prompt unchanged when it has nothing to add.
type Enricher interface {
	Enhance(ctx context.Context, prompt string, rows []types.Row) string
}

type Options struct {
	ChunkSize    int
	Concurrency  int
	Timeout      time.Duration // per LLM call, <= 0 is unbounded
	DefaultModel string
	Enricher     Enricher // optional
	Logger       *log.Logger
}

// Orchestrator runs uploads through normalize, chunk, call, merge. It owns no global
// state: the session registry and progress hub are injected.
type Orchestrator struct {
	gen      Generator
	sessions *session.Registry
	hub      *notify.Hub
	opts     Options
	logger   *log.Logger
}

func New(gen Generator, sessions *session.Registry, hub *notify.Hub, opts Options) *Orchestrator {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = tool.DefaultLogger
	}
	return &Orchestrator{
		gen:      gen,
		sessions: sessions,
		hub:      hub,
		opts:     opts,
		logger:   opts.Logger,
	}
}

// ChunkSize returns the configured rows per chunk.
func (o *Orchestrator) ChunkSize() int {
	return o.opts.ChunkSize
}

// Request is one upload to process.
type Request struct {
	SessionID  string
	Model      string
	Processor  Processor
	Rows       []map[string]string
	SourceFile string
}

// Result is the merged output of one upload.
type Result struct {
	SessionID string
	Columns   []string
	Rows      []types.MergedRow
	Log       types.ProcessingLog
}

// Flat returns the output rows as written to the file.
func (r *Result) Flat() []types.Row {
	out := make([]types.Row, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row.Flatten(r.Columns)
	}
	return out
}

// Process runs one upload to completion. Chunk failures and cancellation never fail the
// call: the result always has one row per input row, and the log names what went wrong.
// An error is returned only for an unusable request.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	if req.Processor == nil {
		return nil, ErrNoProcessor
	}
	if req.Model == "" {
		req.Model = o.opts.DefaultModel
	}
	if req.Model == "" {
		return nil, ErrNoModel
	}
	if req.SessionID == "" {
		req.SessionID = tool.NewSessionID()
	}

	started := time.Now()
	sess, err := o.sessions.Start(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	defer o.sessions.Finish(sess)

	rows := normalize.Rows(req.Rows, req.Processor.Schema())
	chunks := Build(rows, o.opts.ChunkSize)
	total := len(chunks)
	o.logger.Infof("[Process] Session %s: %d row(s) in %d chunk(s) of %d, type %s, model %s",
		req.SessionID, len(rows), total, o.opts.ChunkSize, req.Processor.Name(), req.Model)
	o.hub.Publish(types.Progress{
		SessionId:   req.SessionID,
		Message:     fmt.Sprintf("Processing %d rows in %d chunks", len(rows), total),
		TotalChunks: total,
	})

	var (
		mu        sync.Mutex
		completed int
	)
	settled := func(res types.ChunkResult) {
		mu.Lock()
		defer mu.Unlock()
		completed++
		o.hub.Publish(types.Progress{
			SessionId:       req.SessionID,
			Percent:         percent(completed, total),
			Message:         fmt.Sprintf("Chunk %d %s (%d/%d)", res.ChunkID, res.Status, completed, total),
			ChunksCompleted: completed,
			TotalChunks:     total,
		})
	}

	tasks := make([]func() (types.ChunkResult, error), len(chunks))
	for i, c := range chunks {
		tasks[i] = func() (types.ChunkResult, error) {
			res := o.runChunk(sess, req.Model, req.Processor, c)
			settled(res)
			return res, nil
		}
	}
	outcomes := RunLimited(o.opts.Concurrency, tasks)

	results := make([]types.ChunkResult, len(outcomes))
	for i, out := range outcomes {
		results[i] = out.Value
		if out.Err != nil {
			o.logger.Errorf("[Process] Chunk %d: %v", chunks[i].ID, out.Err)
			results[i] = types.ChunkResult{ChunkID: chunks[i].ID, Status: types.ChunkFailed, Err: out.Err.Error()}
			settled(results[i])
		}
	}

	merged := Merge(rows, req.Processor.Schema().Columns, results, o.opts.ChunkSize)
	result := &Result{
		SessionID: req.SessionID,
		Columns:   merged.Columns,
		Rows:      merged.Rows,
		Log:       o.buildLog(req, len(rows), chunks, results, merged, started),
	}

	final := types.Progress{
		SessionId:       req.SessionID,
		Percent:         100,
		Message:         "Processing complete",
		ChunksCompleted: total,
		TotalChunks:     total,
	}
	if sess.Cancelled() {
		final.Message = "Processing cancelled"
	}
	o.hub.Finish(final)
	o.logger.Infof("[Process] Session %s finished in %dms: %d ok, %d failed, %d cancelled",
		req.SessionID, result.Log.TotalTimeMs, result.Log.SuccessfulChunks, result.Log.FailedChunks, result.Log.CancelledChunks)
	return result, nil
}

func (o *Orchestrator) runChunk(sess *session.Session, model string, proc Processor, c types.Chunk) (res types.ChunkResult) {
	res.ChunkID = c.ID
	if sess.Cancelled() {
		res.Status = types.ChunkCancelled
		return res
	}

	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	prompt := proc.BuildPrompt(c.Rows)
	if o.opts.Enricher != nil {
		prompt = o.opts.Enricher.Enhance(sess.Context(), prompt, c.Rows)
	}
	raw, err := o.gen.Call(sess.Context(), prompt, model, llm.CallOptions{
		Timeout: o.opts.Timeout,
		Session: sess,
	})
	if err != nil {
		if errors.Is(err, llm.ErrNotSent) && errors.Is(err, session.ErrCancelled) {
			res.Status = types.ChunkCancelled
			return res
		}
		o.logger.Warnf("[Process] Chunk %d (rows %d-%d) failed: %v", c.ID, c.Start, c.End-1, err)
		res.Status = types.ChunkFailed
		res.Err = err.Error()
		return res
	}
	parsed, err := proc.ParseResponse(raw, c.Rows)
	if err != nil {
		o.logger.Warnf("[Process] Chunk %d (rows %d-%d) returned an unusable response: %v", c.ID, c.Start, c.End-1, err)
		res.Status = types.ChunkFailed
		res.Err = err.Error()
		return res
	}
	res.Status = types.ChunkOK
	res.Rows = parsed
	return res
}

func (o *Orchestrator) buildLog(req Request, totalRows int, chunks []types.Chunk, results []types.ChunkResult, merged Merged, started time.Time) types.ProcessingLog {
	finished := time.Now()
	l := types.ProcessingLog{
		SessionId:        req.SessionID,
		ProcessingType:   req.Processor.Name(),
		Model:            req.Model,
		SourceFile:       req.SourceFile,
		TotalRows:        totalRows,
		ChunkSize:        o.opts.ChunkSize,
		NumberOfChunks:   len(chunks),
		ChunkTimings:     make([]types.ChunkTiming, 0, len(chunks)),
		FailedRowDetails: []types.FailedRow{},
		CancelledRows:    []int{},
		AddedColumns:     merged.Added,
		StartedAt:        started,
		FinishedAt:       finished,
		TotalTimeMs:      finished.Sub(started).Milliseconds(),
	}
	if l.AddedColumns == nil {
		l.AddedColumns = []string{}
	}
	for i, res := range results {
		switch res.Status {
		case types.ChunkOK:
			l.SuccessfulChunks++
		case types.ChunkCancelled:
			l.CancelledChunks++
		default:
			l.FailedChunks++
		}
		l.ChunkTimings = append(l.ChunkTimings, types.ChunkTiming{
			ChunkID:          res.ChunkID,
			RowStart:         chunks[i].Start,
			RowEnd:           chunks[i].End - 1,
			Status:           res.Status,
			ProcessingTimeMs: res.Duration.Milliseconds(),
			Error:            res.Err,
		})
	}
	chunkSize := o.opts.ChunkSize
	for _, row := range merged.Rows {
		switch row.Outcome {
		case types.RowFailed:
			l.FailedRowDetails = append(l.FailedRowDetails, types.FailedRow{
				RowIndex: row.Index,
				ChunkID:  row.Index / chunkSize,
				Error:    row.Err,
			})
		case types.RowCancelled:
			l.CancelledRows = append(l.CancelledRows, row.Index)
		}
	}
	return l
}

// percent is round(completed/total*100), 100 for an empty run.
func percent(completed, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(completed) * 100 / float64(total)))
}
