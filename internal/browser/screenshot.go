package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// ScreenshotDebugger saves full-page screenshots when a sweep fails.
// An empty output dir disables it.
type ScreenshotDebugger struct {
	outputDir string
	log       *zap.Logger
}

func NewScreenshotDebugger(dir string, log *zap.Logger) *ScreenshotDebugger {
	return &ScreenshotDebugger{outputDir: dir, log: log}
}

func (s *ScreenshotDebugger) CaptureAndLog(page playwright.Page, name, message string) {
	if s == nil || s.outputDir == "" {
		return
	}
	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		s.log.Warn("failed to create screenshot dir", zap.Error(err))
		return
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.png", name, timestamp))

	_, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		s.log.Warn("failed to capture screenshot", zap.String("name", name), zap.Error(err))
		return
	}
	s.log.Info("📸 "+message, zap.String("screenshot", path))
}
