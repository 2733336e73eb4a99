package models

import "strings"

// Job is one listing observed on a portal at one point in time.
// ID is the portal-assigned identifier and the only join key used for diffing.
type Job struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Location   string `json:"location"`
	URL        string `json:"url"`
	Department string `json:"department,omitempty"`
}

// HasTitle reports whether the title is present after trimming.
func (j Job) HasTitle() bool {
	return strings.TrimSpace(j.Title) != ""
}

// HasLocation reports whether the location is present after trimming.
func (j Job) HasLocation() bool {
	return strings.TrimSpace(j.Location) != ""
}

// NeedsEnrichment is true when the listing sweep left title or location empty.
func (j Job) NeedsEnrichment() bool {
	return !j.HasTitle() || !j.HasLocation()
}

// merge fills fields of j with the non-empty fields of later.
// A later non-empty value wins over an earlier one.
func (j Job) merge(later Job) Job {
	if strings.TrimSpace(later.Title) != "" {
		j.Title = later.Title
	}
	if strings.TrimSpace(later.Location) != "" {
		j.Location = later.Location
	}
	if strings.TrimSpace(later.URL) != "" {
		j.URL = later.URL
	}
	if strings.TrimSpace(later.Department) != "" {
		j.Department = later.Department
	}
	return j
}

// Dedup collapses records sharing an ID into one, keeping first-seen order.
// Field values are merged so the most complete record survives; records
// without an ID are dropped.
func Dedup(jobs []Job) []Job {
	index := make(map[string]int, len(jobs))
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		job.ID = strings.TrimSpace(job.ID)
		if job.ID == "" {
			continue
		}
		if i, ok := index[job.ID]; ok {
			out[i] = out[i].merge(job)
			continue
		}
		index[job.ID] = len(out)
		out = append(out, job)
	}
	return out
}

// IDSet returns the set of IDs in jobs.
func IDSet(jobs []Job) map[string]struct{} {
	set := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		set[job.ID] = struct{}{}
	}
	return set
}
