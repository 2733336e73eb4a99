// Package scraper defines the Source contract shared by portal adapters and
// picks the adapter for a portal by its kind.
package scraper

import (
	"context"
	"errors"
	"fmt"

	"go-hiring-tracker/internal/models"
)

var ErrUnknownKind = errors.New("unknown portal kind")

// Source fetches the listings currently published on a portal.
// Per-field extraction problems degrade to empty strings; a returned error
// means the whole fetch attempt failed.
type Source interface {
	//Fetch the current listings of one portal/category
	Fetch(ctx context.Context, portal models.Portal) ([]models.Job, error)

	//Name is the adapter name (attrax, greenhouse, ...)
	Name() string
}

// Registry resolves the adapter for a portal kind.
type Registry map[string]Source

// NewRegistry indexes sources by Name.
func NewRegistry(sources ...Source) Registry {
	r := make(Registry, len(sources))
	for _, s := range sources {
		r[s.Name()] = s
	}
	return r
}

// For returns the adapter for portal.Kind.
func (r Registry) For(portal models.Portal) (Source, error) {
	s, ok := r[portal.Kind]
	if !ok {
		return nil, fmt.Errorf("%w %q for portal %s", ErrUnknownKind, portal.Kind, portal.Key())
	}
	return s, nil
}
