// Package export writes tracked listings to an Excel workbook, one sheet
// per portal/category.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-hiring-tracker/internal/diff"
	"go-hiring-tracker/internal/models"
	"go-hiring-tracker/internal/region"

	"github.com/xuri/excelize/v2"
)

const (
	StatusNew     = "new"
	StatusListed  = "listed"
	StatusRemoved = "removed"
)

// excel limits sheet names to 31 characters
const maxSheetName = 31

// Sheet is the content of one worksheet. Result, when set, marks which
// listings are new and appends the removed ones.
type Sheet struct {
	Snapshot models.Snapshot
	Result   *diff.Result
}

// Row is one exported listing.
type Row struct {
	Job    models.Job
	Status string
}

// Rows lists the snapshot jobs with their status, removed ones last.
func (s Sheet) Rows() []Row {
	jobs := s.Snapshot.Jobs
	var newIDs map[string]struct{}
	if s.Result != nil {
		// an unrecorded run is not in the snapshot yet
		if !s.Result.Recorded {
			jobs = s.Result.Current
		}
		newIDs = models.IDSet(s.Result.New)
	}

	rows := make([]Row, 0, len(jobs))
	for _, j := range jobs {
		status := StatusListed
		if _, ok := newIDs[j.ID]; ok {
			status = StatusNew
		}
		rows = append(rows, Row{Job: j, Status: status})
	}
	if s.Result != nil {
		for _, j := range s.Result.Removed {
			rows = append(rows, Row{Job: j, Status: StatusRemoved})
		}
	}
	return rows
}

// Workbook builds the workbook. Each region adds a yes/blank column.
func Workbook(sheets []Sheet, regions region.Regions) (*excelize.File, error) {
	f := excelize.NewFile()
	headers := append([]string{"id", "title", "location", "url", "department", "status"}, regions.Names()...)

	used := map[string]bool{}
	for i, s := range sheets {
		name := sheetName(s.Snapshot.SnapshotKey, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}

		if err := f.SetSheetRow(name, "A1", &headers); err != nil {
			return nil, err
		}
		for r, row := range s.Rows() {
			values := []any{row.Job.ID, row.Job.Title, row.Job.Location, row.Job.URL, row.Job.Department, row.Status}
			for _, rn := range regions.Names() {
				v := ""
				if region.Classify(row.Job.Location, regions[rn]) {
					v = "yes"
				}
				values = append(values, v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				return nil, err
			}
		}
		if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Save writes the workbook to path, creating its directory.
func Save(path string, sheets []Sheet, regions region.Regions) error {
	f, err := Workbook(sheets, regions)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func sheetName(key models.SnapshotKey, used map[string]bool) string {
	base := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, key.Portal+" "+key.Category)
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}
