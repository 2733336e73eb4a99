package attrax

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go-hiring-tracker/internal/browser"
	"go-hiring-tracker/internal/models"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// extraction budget for a single field of a single tile
const fieldTimeout = 2 * time.Second

// Selectors locate the parts of an Attrax vacancy board. Defaults match the
// markup of jobs.cliffordchance.com. Department has no default; tiles only
// carry one on some boards.
type Selectors struct {
	Tile       string `yaml:"tile"`
	IDAttr     string `yaml:"id_attr"`
	Title      string `yaml:"title"`
	Location   string `yaml:"location"`
	Department string `yaml:"department"`
	Next       string `yaml:"next"`
	Heading    string `yaml:"heading"`
	Breadcrumb string `yaml:"breadcrumb"`
}

func DefaultSelectors() Selectors {
	return Selectors{
		Tile:       ".attrax-vacancy-tile",
		IDAttr:     "data-jobid",
		Title:      ".attrax-vacancy-tile__title",
		Location:   ".attrax-vacancy-tile__option-location .attrax-vacancy-tile__item-value",
		Next:       ".swiper-button-next",
		Heading:    "h1",
		Breadcrumb: `xpath=//*[@id="506ab26f-a08d-47ed-acc8-80ac556e8636"]/ol/li`,
	}
}

// WithDefaults fills every empty selector from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	s.Tile = orDefault(s.Tile, d.Tile)
	s.IDAttr = orDefault(s.IDAttr, d.IDAttr)
	s.Title = orDefault(s.Title, d.Title)
	s.Location = orDefault(s.Location, d.Location)
	s.Department = strings.TrimSpace(s.Department)
	s.Next = orDefault(s.Next, d.Next)
	s.Heading = orDefault(s.Heading, d.Heading)
	s.Breadcrumb = orDefault(s.Breadcrumb, d.Breadcrumb)
	return s
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

type Options struct {
	Selectors     Selectors
	NavTimeout    time.Duration
	DetailTimeout time.Duration
	PageSettle    time.Duration
	MaxPages      int
	Denylist      []string
}

// Sessions hands out a page whose lifetime is bounded by fn.
type Sessions interface {
	WithPage(ctx context.Context, fn func(page playwright.Page) error) error
}

type AttraxScraper struct {
	sessions Sessions
	shots    *browser.ScreenshotDebugger
	opts     Options
	log      *zap.Logger
}

func NewAttraxScraper(sessions Sessions, shots *browser.ScreenshotDebugger, opts Options, log *zap.Logger) *AttraxScraper {
	opts.Selectors = opts.Selectors.WithDefaults()
	return &AttraxScraper{sessions: sessions, shots: shots, opts: opts, log: log}
}

func (s *AttraxScraper) Name() string {
	return "attrax"
}

// Fetch sweeps the whole board, then enriches incomplete records from their
// detail pages. Enrichment only starts once the sweep has produced the final
// deduplicated list.
func (s *AttraxScraper) Fetch(ctx context.Context, portal models.Portal) ([]models.Job, error) {
	base, err := url.Parse(portal.URL)
	if err != nil {
		return nil, fmt.Errorf("parse portal url: %w", err)
	}
	log := s.log.With(zap.String("portal", portal.Key().String()))

	var jobs []models.Job
	err = s.sessions.WithPage(ctx, func(page playwright.Page) error {
		board := &boardPage{page: page, base: base, opts: s.opts, log: log}

		log.Info("📋 opening vacancy board", zap.String("url", portal.URL))
		if err := board.open(portal.URL); err != nil {
			s.shots.CaptureAndLog(page, "attrax-"+slug(portal.Key().String()), "vacancy board did not render")
			return fmt.Errorf("open board: %w", err)
		}

		swept, err := Sweep(ctx, board, s.opts.MaxPages, log)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		log.Info("📦 sweep finished", zap.Int("jobs", len(swept)))

		jobs, err = Enrich(ctx, board, swept, s.opts.Denylist, log)
		return err
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// boardPage adapts a playwright page to ListingPage and DetailPage.
type boardPage struct {
	page playwright.Page
	base *url.URL
	opts Options
	log  *zap.Logger
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

func (b *boardPage) open(target string) error {
	if _, err := b.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(b.opts.NavTimeout),
	}); err != nil {
		return err
	}
	return b.waitForTiles()
}

// waitForTiles blocks until tiles are attached and at least one title has text.
func (b *boardPage) waitForTiles() error {
	sel := b.opts.Selectors
	if err := b.page.Locator(sel.Tile).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(b.opts.NavTimeout),
	}); err != nil {
		return fmt.Errorf("wait for tiles: %w", err)
	}
	_, err := b.page.WaitForFunction(
		`sel => Array.from(document.querySelectorAll(sel)).some(el => el.innerText.trim() !== "")`,
		sel.Title,
		playwright.PageWaitForFunctionOptions{Timeout: ms(b.opts.NavTimeout)},
	)
	if err != nil {
		return fmt.Errorf("wait for titles: %w", err)
	}
	return nil
}

func (b *boardPage) Tiles(ctx context.Context) ([]models.Job, error) {
	sel := b.opts.Selectors
	tiles, err := b.page.Locator(sel.Tile).All()
	if err != nil {
		return nil, err
	}

	jobs := make([]models.Job, 0, len(tiles))
	for _, tile := range tiles {
		id, err := tile.GetAttribute(sel.IDAttr, playwright.LocatorGetAttributeOptions{Timeout: ms(fieldTimeout)})
		if err != nil || strings.TrimSpace(id) == "" {
			continue
		}

		titleEl := tile.Locator(sel.Title).First()
		job := models.Job{
			ID:       strings.TrimSpace(id),
			Title:    b.text(titleEl),
			URL:      b.resolve(b.attr(titleEl, "href")),
			Location: b.text(tile.Locator(sel.Location).First()),
		}
		if sel.Department != "" {
			job.Department = b.text(tile.Locator(sel.Department).First())
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (b *boardPage) Next(ctx context.Context) (bool, error) {
	btn := b.page.Locator(b.opts.Selectors.Next).First()
	if n, err := btn.Count(); err != nil || n == 0 {
		return false, err
	}
	if b.disabled(btn) {
		return false, nil
	}

	//js click, the swiper arrow is often covered by the slides
	if _, err := btn.Evaluate("el => el.click()", nil); err != nil {
		return false, fmt.Errorf("click next: %w", err)
	}
	b.page.WaitForTimeout(float64(b.opts.PageSettle.Milliseconds()))

	if err := b.waitForTiles(); err != nil {
		return false, err
	}
	return true, nil
}

func (b *boardPage) disabled(btn playwright.Locator) bool {
	if v, _ := btn.GetAttribute("aria-disabled", playwright.LocatorGetAttributeOptions{Timeout: ms(fieldTimeout)}); v == "true" {
		return true
	}
	class, _ := btn.GetAttribute("class", playwright.LocatorGetAttributeOptions{Timeout: ms(fieldTimeout)})
	return strings.Contains(class, "swiper-button-disabled")
}

func (b *boardPage) Open(ctx context.Context, target string) error {
	if _, err := b.page.Goto(target, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms(b.opts.NavTimeout),
	}); err != nil {
		return err
	}
	return b.page.Locator(b.opts.Selectors.Heading).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: ms(b.opts.DetailTimeout),
	})
}

func (b *boardPage) Heading(ctx context.Context) (string, error) {
	return b.page.Locator(b.opts.Selectors.Heading).First().InnerText(playwright.LocatorInnerTextOptions{
		Timeout: ms(fieldTimeout),
	})
}

func (b *boardPage) Breadcrumbs(ctx context.Context) ([]string, error) {
	return b.page.Locator(b.opts.Selectors.Breadcrumb).AllInnerTexts()
}

// text returns the trimmed inner text, or "" when the element is missing.
func (b *boardPage) text(el playwright.Locator) string {
	t, err := el.InnerText(playwright.LocatorInnerTextOptions{Timeout: ms(fieldTimeout)})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(t)
}

func (b *boardPage) attr(el playwright.Locator, name string) string {
	v, err := el.GetAttribute(name, playwright.LocatorGetAttributeOptions{Timeout: ms(fieldTimeout)})
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

// resolve turns a relative href into an absolute URL against the board.
func (b *boardPage) resolve(href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.base.ResolveReference(ref).String()
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '_'
	}, s)
}
