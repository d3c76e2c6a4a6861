package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OutputFileName names the processed workbook after the upload and processing type,
// e.g. "beta_issues_feedback_2026-01-31.xlsx".
func OutputFileName(source, processingType string, now time.Time) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "_.")
	if base == "" || base == "." {
		base = "upload"
	}
	return fmt.Sprintf("%s_%s_%s.xlsx", processingType, base, now.Format("2006-01-02"))
}

// WriteFileWithContext writes src to path, stopping early when ctx is done. A partial
// file is removed on failure.
func WriteFileWithContext(ctx context.Context, path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", filepath.Base(path), err)
	}
	n, err := CopyWithContext(ctx, f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return n, err
	}
	return n, nil
}

// CopyWithContext copies from src to dst while respecting context cancellation.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 256*1024)
	var written int64
	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if writeErr == nil {
					writeErr = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return written, nil
			}
			return written, readErr
		}
	}
}
