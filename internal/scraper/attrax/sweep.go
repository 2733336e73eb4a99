package attrax

import (
	"context"
	"strings"

	"go-hiring-tracker/internal/models"

	"go.uber.org/zap"
)

// ListingPage is a rendered vacancy board that pages through its tiles.
type ListingPage interface {
	// Tiles extracts every tile currently rendered. Missing fields are empty.
	Tiles(ctx context.Context) ([]models.Job, error)
	// Next advances the pagination. False means the control is gone or disabled.
	Next(ctx context.Context) (bool, error)
}

// DetailPage is a single vacancy page used to fill fields the board left empty.
type DetailPage interface {
	Open(ctx context.Context, url string) error
	Heading(ctx context.Context) (string, error)
	Breadcrumbs(ctx context.Context) ([]string, error)
}

// Sweep reads the board, advancing until the set of distinct ids stops
// growing after an advance or the next control reports the end. The
// disabled state of the control is not trusted on its own. maxPages caps the
// number of reads. The result is deduplicated by id.
func Sweep(ctx context.Context, page ListingPage, maxPages int, log *zap.Logger) ([]models.Job, error) {
	if maxPages < 1 {
		maxPages = 1
	}

	tiles, err := page.Tiles(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var all []models.Job
	grow := func(batch []models.Job) int {
		added := 0
		for _, job := range batch {
			id := strings.TrimSpace(job.ID)
			if id == "" {
				continue
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				added++
			}
			all = append(all, job)
		}
		return added
	}
	grow(tiles)

	for reads := 1; reads < maxPages; reads++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		advanced, err := page.Next(ctx)
		if err != nil {
			log.Debug("pagination stopped", zap.Int("page", reads), zap.Error(err))
			break
		}
		if !advanced {
			break
		}

		tiles, err := page.Tiles(ctx)
		if err != nil {
			log.Debug("tile read after advance failed", zap.Int("page", reads+1), zap.Error(err))
			break
		}
		if grow(tiles) == 0 {
			break
		}
	}

	return models.Dedup(all), nil
}

// Enrich fills empty titles and locations from each record's detail page.
// Failures on one record leave its fields as they were; only cancellation of
// ctx stops the pass.
func Enrich(ctx context.Context, page DetailPage, jobs []models.Job, denylist []string, log *zap.Logger) ([]models.Job, error) {
	out := make([]models.Job, len(jobs))
	copy(out, jobs)

	for i, job := range out {
		if !job.NeedsEnrichment() || job.URL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if err := page.Open(ctx, job.URL); err != nil {
			log.Debug("detail page unavailable", zap.String("id", job.ID), zap.Error(err))
			continue
		}

		if !job.HasTitle() {
			if heading, err := page.Heading(ctx); err == nil {
				out[i].Title = strings.TrimSpace(heading)
			} else {
				log.Debug("detail heading missing", zap.String("id", job.ID), zap.Error(err))
			}
		}
		if !job.HasLocation() {
			if items, err := page.Breadcrumbs(ctx); err == nil {
				if loc := PickBreadcrumb(items, denylist); loc != "" {
					out[i].Location = loc
				}
			} else {
				log.Debug("detail breadcrumbs missing", zap.String("id", job.ID), zap.Error(err))
			}
		}
	}
	return out, nil
}

// PickBreadcrumb returns the first non-empty breadcrumb that contains none of
// the denylisted employment-type words (case-insensitive), or "".
func PickBreadcrumb(items []string, denylist []string) string {
	for _, item := range items {
		text := strings.TrimSpace(item)
		if text == "" {
			continue
		}
		lower := strings.ToLower(text)
		denied := false
		for _, word := range denylist {
			word = strings.ToLower(strings.TrimSpace(word))
			if word != "" && strings.Contains(lower, word) {
				denied = true
				break
			}
		}
		if !denied {
			return text
		}
	}
	return ""
}
