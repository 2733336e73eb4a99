package greenhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-hiring-tracker/internal/models"

	"go.uber.org/zap"
)

const maxBodyBytes = 32 << 20

// GreenhouseScraper reads a Greenhouse job-board API endpoint
// (https://boards-api.greenhouse.io/v1/boards/<board>/jobs). Every field is
// present in the payload, so no enrichment pass is needed.
type GreenhouseScraper struct {
	client *http.Client
	log    *zap.Logger
}

func NewGreenhouseScraper(timeout time.Duration, log *zap.Logger) *GreenhouseScraper {
	return &GreenhouseScraper{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (s *GreenhouseScraper) Name() string {
	return "greenhouse"
}

// boardResponse mirrors the top-level board payload.
type boardResponse struct {
	Jobs []boardJob `json:"jobs"`
}

type boardJob struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	AbsoluteURL string      `json:"absolute_url"`
	Location    struct {
		Name string `json:"name"`
	} `json:"location"`
	Departments []struct {
		Name string `json:"name"`
	} `json:"departments"`
}

func (s *GreenhouseScraper) Fetch(ctx context.Context, portal models.Portal) ([]models.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, portal.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET %s: %w", portal.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("greenhouse returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var board boardResponse
	if err := json.Unmarshal(body, &board); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	jobs := make([]models.Job, 0, len(board.Jobs))
	for _, j := range board.Jobs {
		job := models.Job{
			ID:       j.ID.String(),
			Title:    strings.TrimSpace(j.Title),
			Location: strings.TrimSpace(j.Location.Name),
			URL:      strings.TrimSpace(j.AbsoluteURL),
		}
		if len(j.Departments) > 0 {
			job.Department = strings.TrimSpace(j.Departments[0].Name)
		}
		jobs = append(jobs, job)
	}

	s.log.Debug("greenhouse board fetched",
		zap.String("portal", portal.Key().String()),
		zap.Int("jobs", len(jobs)))
	return jobs, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
