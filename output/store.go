// Package output keeps processed workbooks and their processing logs on disk until
// they are downloaded.
package output

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"

	"github.com/geekydillip/Market-Pulse-AI-sub000/tool"
	"github.com/geekydillip/Market-Pulse-AI-sub000/types"
)

const (
	DefaultFolder   = "outputs"
	DefaultIndexTTL = 24 * time.Hour
	logFileName     = "log.json"
)

var ErrNotFound = errors.New("output not found")

// Artifact is one processed upload: <folder>/<id>/<FileName> plus <folder>/<id>/log.json.
type Artifact struct {
	ID        string
	Dir       string
	FileName  string
	CreatedAt time.Time
}

func (a *Artifact) XLSXPath() string { return filepath.Join(a.Dir, a.FileName) }
func (a *Artifact) LogPath() string  { return filepath.Join(a.Dir, logFileName) }

// Store writes artifacts under a folder and indexes recent ones in memory. Artifacts
// that fell out of the index are still found on disk.
type Store struct {
	folder string
	index  *ttlworker.Cache[string, *Artifact]
	logger *log.Logger
}

// NewStore creates folder if needed. A ttl <= 0 selects DefaultIndexTTL.
func NewStore(folder string, ttl time.Duration, logger *log.Logger) (*Store, error) {
	if folder == "" {
		folder = DefaultFolder
	}
	if ttl <= 0 {
		ttl = DefaultIndexTTL
	}
	if logger == nil {
		logger = tool.DefaultLogger
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}
	return &Store{
		folder: folder,
		index:  ttlworker.NewCache[string, *Artifact](ttl),
		logger: logger,
	}, nil
}

// Folder returns the root output folder.
func (s *Store) Folder() string {
	return s.folder
}

// Save persists a workbook and its log under a fresh id.
func (s *Store) Save(ctx context.Context, fileName string, workbook *bytes.Buffer, plog types.ProcessingLog) (*Artifact, error) {
	fileName = filepath.Base(fileName)
	if fileName == "." || fileName == string(filepath.Separator) || !strings.HasSuffix(strings.ToLower(fileName), ".xlsx") {
		return nil, fmt.Errorf("invalid output file name %q", fileName)
	}
	id, dir, err := s.newDir()
	if err != nil {
		return nil, err
	}
	a := &Artifact{ID: id, Dir: dir, FileName: fileName, CreatedAt: time.Now()}

	if _, err := tool.WriteFileWithContext(ctx, a.XLSXPath(), workbook); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	data, err := sonic.ConfigStd.MarshalIndent(plog, "", "  ")
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to encode processing log: %w", err)
	}
	if err := os.WriteFile(a.LogPath(), data, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to write processing log: %w", err)
	}

	s.index.Set(id, a)
	s.logger.Infof("[Output] Saved %s as %s", fileName, id)
	return a, nil
}

func (s *Store) newDir() (string, string, error) {
	for range 5 {
		id := tool.NewShortID()
		dir := filepath.Join(s.folder, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	id := tool.NewSessionID()
	dir := filepath.Join(s.folder, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}
	return id, dir, nil
}

// Get returns the artifact stored under id.
func (s *Store) Get(id string) (*Artifact, error) {
	if !tool.ValidID(id) {
		return nil, ErrNotFound
	}
	if a := s.index.Get(id); a != nil {
		return a, nil
	}

	dir := filepath.Join(s.folder, id)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ErrNotFound
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		a := &Artifact{ID: id, Dir: dir, FileName: e.Name(), CreatedAt: info.ModTime()}
		s.index.Set(id, a)
		return a, nil
	}
	return nil, ErrNotFound
}

// Log reads back the processing log of id.
func (s *Store) Log(id string) (*types.ProcessingLog, error) {
	a, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(a.LogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read processing log: %w", err)
	}
	var plog types.ProcessingLog
	if err := sonic.Unmarshal(data, &plog); err != nil {
		return nil, fmt.Errorf("failed to decode processing log: %w", err)
	}
	return &plog, nil
}
