// Package seed loads the default card catalog and writes it to the card_templates table
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/amirphl/Omikuji/models"
	"github.com/amirphl/Omikuji/repository"
	"github.com/amirphl/Omikuji/utils"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed cards.yaml
var defaultCatalog []byte

const defaultLocale = "fr-FR"

// CardSpec is one card as written in the catalog file
type CardSpec struct {
	Type      string   `yaml:"type"`
	Label     string   `yaml:"label"`
	Intensity int      `yaml:"intensity"`
	Tags      []string `yaml:"tags"`
	Locale    string   `yaml:"locale"`
	Weight    *float64 `yaml:"weight"`
	Inactive  bool     `yaml:"inactive"`
}

// Catalog is a parsed catalog file
type Catalog struct {
	Cards []CardSpec `yaml:"cards"`
}

// Parse decodes and validates a catalog document
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	var problems []string
	seen := make(map[string]struct{}, len(c.Cards))
	for i, card := range c.Cards {
		if !models.CardType(card.Type).IsValid() {
			problems = append(problems, fmt.Sprintf("card %d: unknown type %q", i, card.Type))
		}
		if strings.TrimSpace(card.Label) == "" {
			problems = append(problems, fmt.Sprintf("card %d: label is required", i))
		}
		if card.Intensity < 1 || card.Intensity > 5 {
			problems = append(problems, fmt.Sprintf("card %d: intensity must be between 1 and 5", i))
		}
		if card.Weight != nil && *card.Weight <= 0 {
			problems = append(problems, fmt.Sprintf("card %d: weight must be positive", i))
		}
		key := card.Label + "|" + localeOrDefault(card.Locale)
		if _, dup := seen[key]; dup {
			problems = append(problems, fmt.Sprintf("card %d: duplicate label for locale", i))
		}
		seen[key] = struct{}{}
	}
	if len(problems) > 0 {
		return nil, errors.New("invalid catalog: " + strings.Join(problems, "; "))
	}
	return &c, nil
}

// Default returns the embedded fr-FR catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

func localeOrDefault(locale string) string {
	if locale == "" {
		return defaultLocale
	}
	return locale
}

// Templates converts the catalog into rows ready for upsert
func (c *Catalog) Templates() []*models.CardTemplate {
	out := make([]*models.CardTemplate, 0, len(c.Cards))
	for _, card := range c.Cards {
		weight := 1.0
		if card.Weight != nil {
			weight = *card.Weight
		}
		tags := card.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, &models.CardTemplate{
			UUID:      uuid.New(),
			Type:      models.CardType(card.Type),
			Label:     card.Label,
			Intensity: card.Intensity,
			Tags:      tags,
			Locale:    localeOrDefault(card.Locale),
			Weight:    weight,
			IsActive:  utils.ToPtr(!card.Inactive),
		})
	}
	return out
}

// CacheInvalidator drops cached catalog reads after a write
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Seeder writes a catalog into the database
type Seeder struct {
	repo   repository.CardTemplateRepository
	cache  CacheInvalidator
	logger *slog.Logger
}

func NewSeeder(repo repository.CardTemplateRepository, cache CacheInvalidator, logger *slog.Logger) *Seeder {
	return &Seeder{repo: repo, cache: cache, logger: logger}
}

// Run upserts every card of the catalog and invalidates the catalog cache
func (s *Seeder) Run(ctx context.Context, catalog *Catalog) (int64, error) {
	templates := catalog.Templates()
	affected, err := s.repo.Upsert(ctx, templates)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.WarnContext(ctx, "catalog cache invalidation failed", slog.Any("error", err))
		}
	}

	good := 0
	for _, t := range templates {
		if t.Type == models.CardTypeGood {
			good++
		}
	}
	s.logger.InfoContext(ctx, "card catalog seeded",
		slog.Int("cards", len(templates)),
		slog.Int("good", good),
		slog.Int("bad", len(templates)-good),
		slog.Int64("rows_affected", affected),
	)
	return affected, nil
}
