package seed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)
	require.Len(t, catalog.Cards, 30)

	templates := catalog.Templates()
	counts := map[models.CardType]int{}
	weighted := 0
	for _, tpl := range templates {
		counts[tpl.Type]++
		assert.Equal(t, "fr-FR", tpl.Locale)
		assert.NotEmpty(t, tpl.Tags)
		assert.True(t, *tpl.IsActive)
		if tpl.Weight != 1 {
			weighted++
		}
	}
	assert.Equal(t, 15, counts[models.CardTypeGood])
	assert.Equal(t, 15, counts[models.CardTypeBad])
	assert.Equal(t, 5, weighted)
	assert.Equal(t, 1.1, templates[0].Weight)
}

func TestParseRejectsBadCards(t *testing.T) {
	doc := []byte(`
cards:
  - type: MEH
    label: ""
    intensity: 9
    weight: -1
  - type: GOOD
    label: same
    intensity: 1
  - type: BAD
    label: same
    intensity: 1
`)
	_, err := Parse(doc)
	require.Error(t, err)
	for _, want := range []string{"unknown type", "label is required", "intensity", "weight must be positive", "duplicate label"} {
		assert.Contains(t, err.Error(), want)
	}
}

type recordingRepo struct {
	repository.CardTemplateRepository
	upserted []*models.CardTemplate
}

func (r *recordingRepo) Upsert(_ context.Context, templates []*models.CardTemplate) (int64, error) {
	r.upserted = templates
	return int64(len(templates)), nil
}

type countingCache struct{ calls int }

func (c *countingCache) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestSeederRun(t *testing.T) {
	repo := &recordingRepo{}
	cache := &countingCache{}
	seeder := NewSeeder(repo, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))

	catalog, err := Default()
	require.NoError(t, err)

	n, err := seeder.Run(context.Background(), catalog)
	require.NoError(t, err)
	assert.EqualValues(t, 30, n)
	assert.Len(t, repo.upserted, 30)
	assert.Equal(t, 1, cache.calls)
}
