package region

import (
	"testing"

	"go-hiring-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

var asia = []string{"india", "gurgaon", "singapore", "hong kong", "ha noi"}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		location string
		keywords []string
		want     bool
	}{
		{"asian office", "Gurgaon, India", asia, true},
		{"european office", "London, UK", asia, false},
		{"case insensitive", "SINGAPORE", asia, true},
		{"diacritics folded", "Hà Nội, Vietnam", asia, true},
		{"empty location", "", asia, false},
		{"no keywords", "Gurgaon", nil, false},
		{"blank keyword ignored", "London", []string{" ", ""}, false},
		{"keyword case folded", "Hong Kong SAR", []string{"HONG KONG"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.location, tt.keywords))
		})
	}
}

func TestPartition(t *testing.T) {
	jobs := []models.Job{
		{ID: "1", Location: "London, UK"},
		{ID: "2", Location: "Gurgaon, India"},
		{ID: "3", Location: ""},
		{ID: "4", Location: "Singapore"},
	}

	in, out := Partition(jobs, asia)
	assert.Equal(t, []models.Job{jobs[1], jobs[3]}, in)
	assert.Equal(t, []models.Job{jobs[0], jobs[2]}, out)
}

func TestRegions(t *testing.T) {
	r := Regions{
		"Asia":   asia,
		"Europe": {"london", "paris"},
	}

	assert.Equal(t, []string{"Asia", "Europe"}, r.Names())
	assert.Equal(t, []string{"Europe"}, r.Of("London, UK"))
	assert.Empty(t, r.Of("New York"))
	assert.Equal(t, 1, r.Count("Asia", []models.Job{{Location: "Gurgaon"}, {Location: "Paris"}}))
	assert.Zero(t, r.Count("Mars", []models.Job{{Location: "Gurgaon"}}))
}
