package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

type Options struct {
	Headless bool
	//chromium flags, the defaults suit containers
	Args []string
	//added to every new context
	Cookies []playwright.OptionalCookie
}

var defaultArgs = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
}

// PlaywrightManager owns one playwright driver and one browser process.
// It is created per run and must be closed by whoever created it.
type PlaywrightManager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cookies []playwright.OptionalCookie
}

func NewPlaywright(ctx context.Context, opts Options) (*PlaywrightManager, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	args := opts.Args
	if len(args) == 0 {
		args = defaultArgs
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     args,
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	return &PlaywrightManager{pw: pw, browser: browser, cookies: opts.Cookies}, nil
}

// NewContext opens an isolated browser context with a desktop viewport and
// the configured cookies.
func (pm *PlaywrightManager) NewContext() (playwright.BrowserContext, error) {
	bctx, err := pm.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1920, Height: 1080},
	})
	if err != nil {
		return nil, err
	}
	if len(pm.cookies) > 0 {
		if err := bctx.AddCookies(pm.cookies); err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("add cookies: %w", err)
		}
	}
	return bctx, nil
}

func (pm *PlaywrightManager) Close() error {
	var errs []error
	if pm.browser != nil {
		errs = append(errs, pm.browser.Close())
	}
	if pm.pw != nil {
		errs = append(errs, pm.pw.Stop())
	}
	return errors.Join(errs...)
}

// Launcher hands out scoped browser sessions. Every WithPage call starts its
// own browser and tears it down on return, so no session outlives a fetch.
type Launcher struct {
	opts Options
	log  *zap.Logger
}

func NewLauncher(opts Options, log *zap.Logger) *Launcher {
	return &Launcher{opts: opts, log: log}
}

// WithPage runs fn with a fresh page and releases the page, its context and
// the browser on every exit path, including a panic in fn.
func (l *Launcher) WithPage(ctx context.Context, fn func(page playwright.Page) error) (err error) {
	pm, err := NewPlaywright(ctx, l.opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := pm.Close(); cerr != nil {
			l.log.Warn("browser shutdown failed", zap.Error(cerr))
		}
	}()

	browserCtx, err := pm.NewContext()
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	defer browserCtx.Close()

	page, err := browserCtx.NewPage()
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	return fn(page)
}
