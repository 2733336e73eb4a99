package scraper

import (
	"context"
	"errors"
	"testing"

	"go-hiring-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedSource string

func (n namedSource) Name() string { return string(n) }

func (n namedSource) Fetch(context.Context, models.Portal) ([]models.Job, error) {
	return nil, nil
}

func TestRegistry_For(t *testing.T) {
	r := NewRegistry(namedSource("attrax"), namedSource("greenhouse"))

	s, err := r.For(models.Portal{Name: "tower-research", Kind: "greenhouse", Category: "all"})
	require.NoError(t, err)
	assert.Equal(t, "greenhouse", s.Name())

	_, err = r.For(models.Portal{Name: "x", Kind: "lever", Category: "all"})
	assert.True(t, errors.Is(err, ErrUnknownKind))
}
