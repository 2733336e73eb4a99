package export

import (
	"path/filepath"
	"testing"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/region"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var regions = region.Regions{"Asia": {"india", "singapore"}}

func sheet(portal, category string, jobs ...models.Job) Sheet {
	return Sheet{Snapshot: models.Snapshot{
		SnapshotKey: models.SnapshotKey{Portal: portal, Category: category},
		Jobs:        jobs,
	}}
}

func TestRows_Status(t *testing.T) {
	s := sheet("p", "c", models.Job{ID: "1"}, models.Job{ID: "2"})
	s.Result = &diff.Result{
		Recorded: true,
		New:      []models.Job{{ID: "2"}},
		Removed:  []models.Job{{ID: "0"}},
	}

	rows := s.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, StatusListed, rows[0].Status)
	assert.Equal(t, StatusNew, rows[1].Status)
	assert.Equal(t, Row{Job: models.Job{ID: "0"}, Status: StatusRemoved}, rows[2])
}

func TestRows_UnrecordedUsesCurrent(t *testing.T) {
	s := sheet("p", "c", models.Job{ID: "old"})
	s.Result = &diff.Result{Current: []models.Job{{ID: "live"}}, New: []models.Job{{ID: "live"}}}

	rows := s.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "live", rows[0].Job.ID)
	assert.Equal(t, StatusNew, rows[0].Status)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "jobs.xlsx")
	sheets := []Sheet{
		sheet("clifford-chance", "Early_Careers",
			models.Job{ID: "1", Title: "Trainee", Location: "Gurgaon, India", URL: "https://x/1"}),
		sheet("tower-research", "all",
			models.Job{ID: "9", Title: "Engineer", Location: "London", Department: "Core"}),
	}

	require.NoError(t, Save(path, sheets, regions))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"clifford-chance Early_Careers", "tower-research all"}, f.GetSheetList())

	rows, err := f.GetRows("clifford-chance Early_Careers")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "title", "location", "url", "department", "status", "Asia"}, rows[0])
	assert.Equal(t, []string{"1", "Trainee", "Gurgaon, India", "https://x/1", "", "listed", "yes"}, rows[1])

	rows, err = f.GetRows("tower-research all")
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows[1]), 6)
	assert.Equal(t, []string{"9", "Engineer", "London", "", "Core", "listed"}, rows[1][:6])
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	long := models.SnapshotKey{Portal: "clifford-chance", Category: "Business_Professionals_and_More"}

	first := sheetName(long, used)
	second := sheetName(long, used)

	assert.Len(t, []rune(first), maxSheetName)
	assert.NotEqual(t, first, second)
	assert.LessOrEqual(t, len([]rune(second)), maxSheetName)
	assert.Equal(t, "a_b c", sheetName(models.SnapshotKey{Portal: "a/b", Category: "c"}, used))
}
