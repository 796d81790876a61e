package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
)

// FileDiagnostics writes error_<handle>.png and error_<handle>.html into
// Dir. Every step is best effort; failures are only logged.
type FileDiagnostics struct {
	Dir    string
	Logger *slog.Logger
}

func NewFileDiagnostics(dir string, logger *slog.Logger) *FileDiagnostics {
	return &FileDiagnostics{Dir: dir, Logger: logger}
}

// Paths returns the screenshot and HTML dump locations for handle.
func (d *FileDiagnostics) Paths(handle string) (png, html string) {
	return filepath.Join(d.Dir, "error_"+handle+".png"),
		filepath.Join(d.Dir, "error_"+handle+".html")
}

func (d *FileDiagnostics) Capture(ctx context.Context, handle string, sess Session, cause error) {
	logger := d.Logger.With("handle", handle)
	pngPath, htmlPath := d.Paths(handle)

	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		logger.Warn("diagnostics dir unavailable", "dir", d.Dir, "error", err)
		return
	}

	if shot, err := sess.Screenshot(ctx); err != nil {
		logger.Warn("diagnostic screenshot failed", "error", err)
	} else if err := os.WriteFile(pngPath, shot, 0o644); err != nil {
		logger.Warn("failed to save screenshot", "path", pngPath, "error", err)
	} else {
		logger.Info("saved error screenshot", "path", pngPath)
	}

	if html, err := sess.HTML(ctx); err != nil {
		logger.Warn("diagnostic html dump failed", "error", err)
	} else if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		logger.Warn("failed to save html dump", "path", htmlPath, "error", err)
	} else {
		logger.Info("saved error html", "path", htmlPath, "cause", cause)
	}
}
