package attrax

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"

	"go-hiring-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBoard renders pages[current]; Next moves forward until the last page,
// where it keeps "succeeding" without changing the content, like a swiper
// whose disabled state is not reported.
type fakeBoard struct {
	pages   [][]models.Job
	current int
	nexts   int
	nextErr error
}

func (f *fakeBoard) Tiles(context.Context) ([]models.Job, error) {
	return f.pages[f.current], nil
}

func (f *fakeBoard) Next(context.Context) (bool, error) {
	f.nexts++
	if f.nextErr != nil {
		return false, f.nextErr
	}
	if f.current < len(f.pages)-1 {
		f.current++
	}
	return true, nil
}

func page(prefix string, n int) []models.Job {
	jobs := make([]models.Job, n)
	for i := range jobs {
		jobs[i] = models.Job{ID: fmt.Sprintf("%s%d", prefix, i), Title: "Role"}
	}
	return jobs
}

func TestSweep_StopsWhenIDSetStopsGrowing(t *testing.T) {
	last := page("d", 8)
	board := &fakeBoard{pages: [][]models.Job{page("a", 5), page("b", 5), page("c", 8), last, last}}

	jobs, err := Sweep(context.Background(), board, 100, zap.NewNop())
	require.NoError(t, err)

	// 5 + 5 + 8 + 8 distinct, the repeated last page adds nothing
	assert.Len(t, jobs, 26)
	assert.Equal(t, 4, board.nexts)
}

func TestSweep_TerminatesOnUnreliableLastPage(t *testing.T) {
	board := &fakeBoard{pages: [][]models.Job{page("a", 5), page("b", 5), page("c", 8)}}

	jobs, err := Sweep(context.Background(), board, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, jobs, 18)
	assert.Equal(t, 3, board.nexts)
}

func TestSweep_CumulativeRendering(t *testing.T) {
	// a board that appends tiles instead of replacing them
	first := page("a", 5)
	second := append(append([]models.Job{}, first...), page("b", 3)...)
	board := &fakeBoard{pages: [][]models.Job{first, second}}

	jobs, err := Sweep(context.Background(), board, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, jobs, 8)
}

func TestSweep_NextErrorEndsPagination(t *testing.T) {
	board := &fakeBoard{pages: [][]models.Job{page("a", 5), page("b", 5)}, nextErr: errors.New("element detached")}

	jobs, err := Sweep(context.Background(), board, 100, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, jobs, 5)
}

func TestSweep_MaxPagesCap(t *testing.T) {
	pages := make([][]models.Job, 50)
	for i := range pages {
		pages[i] = page(fmt.Sprintf("p%d-", i), 2)
	}
	board := &fakeBoard{pages: pages}

	jobs, err := Sweep(context.Background(), board, 3, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, jobs, 6)
}

func TestSweep_CollapsesDuplicatesKeepingCompleteFields(t *testing.T) {
	board := &fakeBoard{pages: [][]models.Job{
		{{ID: "1", Title: "", Location: "London"}, {ID: "2", Title: "Paralegal"}},
		{{ID: "1", Title: "Associate"}, {ID: "3", Title: "Analyst"}},
	}}

	jobs, err := Sweep(context.Background(), board, 100, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, models.Job{ID: "1", Title: "Associate", Location: "London"}, jobs[0])
}

func TestSweep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	board := &fakeBoard{pages: [][]models.Job{page("a", 1), page("b", 1)}}

	_, err := Sweep(ctx, board, 100, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeDetail struct {
	headings    map[string]string
	breadcrumbs map[string][]string
	broken      map[string]bool
	current     string
	opened      []string
}

func (f *fakeDetail) Open(_ context.Context, u string) error {
	f.opened = append(f.opened, u)
	if f.broken[u] {
		return errors.New("navigation timeout")
	}
	f.current = u
	return nil
}

func (f *fakeDetail) Heading(context.Context) (string, error) {
	h, ok := f.headings[f.current]
	if !ok {
		return "", errors.New("no h1")
	}
	return h, nil
}

func (f *fakeDetail) Breadcrumbs(context.Context) ([]string, error) {
	return f.breadcrumbs[f.current], nil
}

var denylist = []string{"permanent", "temporary", "contract", "full", "part", "fixed", "term"}

func TestEnrich_FillsOnlyMissingFields(t *testing.T) {
	detail := &fakeDetail{
		headings: map[string]string{"https://x/1": " Senior Associate \n", "https://x/2": "Ignored"},
		breadcrumbs: map[string][]string{
			"https://x/1": {"Permanent", "Full Time", " Hong Kong "},
			"https://x/2": {"Fixed Term Contract", "Singapore"},
		},
	}
	jobs := []models.Job{
		{ID: "1", URL: "https://x/1"},
		{ID: "2", Title: "Trainee", URL: "https://x/2"},
		{ID: "3", Title: "Complete", Location: "Paris", URL: "https://x/3"},
	}

	got, err := Enrich(context.Background(), detail, jobs, denylist, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, "Senior Associate", got[0].Title)
	assert.Equal(t, "Hong Kong", got[0].Location)
	assert.Equal(t, "Trainee", got[1].Title)
	assert.Equal(t, "Singapore", got[1].Location)
	assert.Equal(t, []string{"https://x/1", "https://x/2"}, detail.opened)
	assert.Empty(t, jobs[0].Title, "input must not be modified")
}

func TestEnrich_FailuresDegradeSilently(t *testing.T) {
	detail := &fakeDetail{broken: map[string]bool{"https://x/1": true}}
	jobs := []models.Job{
		{ID: "1", URL: "https://x/1"},
		{ID: "2", URL: "https://x/2"},
		{ID: "3"},
	}

	got, err := Enrich(context.Background(), detail, jobs, denylist, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, jobs, got)
	assert.Equal(t, []string{"https://x/1", "https://x/2"}, detail.opened)
}

func TestPickBreadcrumb(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  string
	}{
		{"skips employment types", []string{"Permanent", "Part Time", "London"}, "London"},
		{"skips empty", []string{"", "  ", "Tokyo"}, "Tokyo"},
		{"first match wins", []string{"Gurgaon", "Mumbai"}, "Gurgaon"},
		{"substring denylisted", []string{"Long-term", "Dubai"}, "Dubai"},
		{"nothing usable", []string{"Contract", "Temporary"}, ""},
		{"no items", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PickBreadcrumb(tt.items, denylist))
		})
	}
}

func TestBoardPage_Resolve(t *testing.T) {
	base, err := url.Parse("https://jobs.cliffordchance.com/experienced-lawyers")
	require.NoError(t, err)
	b := &boardPage{base: base}

	assert.Equal(t, "https://jobs.cliffordchance.com/job/associate-123", b.resolve("/job/associate-123"))
	assert.Equal(t, "https://other.example/x", b.resolve("https://other.example/x"))
	assert.Empty(t, b.resolve(""))
}

func TestSelectors_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultSelectors(), Selectors{}.WithDefaults())

	got := Selectors{Next: " .pager-next ", Department: ".team"}.WithDefaults()
	assert.Equal(t, ".pager-next", got.Next)
	assert.Equal(t, ".team", got.Department)
	assert.Equal(t, DefaultSelectors().Tile, got.Tile)
	assert.Equal(t, DefaultSelectors().Breadcrumb, got.Breadcrumb)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "clifford-chance_Early_Careers", slug("clifford-chance/Early Careers"))
}
