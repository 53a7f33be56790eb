// Package devotional serves a short daily message on the storefront home page.
package devotional

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/storefront/internal/database"
	"github.com/mrlokans/storefront/internal/entities"
)

const (
	FallbackMessage = "Be still, and know. Take a quiet moment with a good book today."

	systemPrompt = "You write one short, warm devotional thought for readers of an online bookstore. " +
		"Two or three sentences, no headings, no quotation marks."
	dayLayout = "2006-01-02"
)

type Store interface {
	GetByDay(ctx context.Context, day string) (*entities.Devotional, error)
	Upsert(ctx context.Context, d *entities.Devotional) error
}

type Service struct {
	store     Store
	generator Generator
	log       zerolog.Logger
	now       func() time.Time
}

func NewService(store Store, generator Generator, log zerolog.Logger) *Service {
	return &Service{
		store:     store,
		generator: generator,
		log:       log.With().Str("component", "devotional").Logger(),
		now:       time.Now,
	}
}

// Today returns the stored message for today, generating it on first use.
// A fallback message is served, and stored, when generation fails; the next
// call tries the generator again.
func (s *Service) Today(ctx context.Context) (*entities.Devotional, error) {
	day := s.now().UTC().Format(dayLayout)

	existing, err := s.store.GetByDay(ctx, day)
	if err == nil && existing.Source == entities.DevotionalGenerated {
		return existing, nil
	}
	if err != nil && !database.IsNotFound(err) {
		return nil, fmt.Errorf("load devotional: %w", err)
	}
	return s.generate(ctx, day)
}

// Pregenerate fills today's message ahead of the first visitor.
func (s *Service) Pregenerate(ctx context.Context) error {
	_, err := s.Today(ctx)
	return err
}

func (s *Service) generate(ctx context.Context, day string) (*entities.Devotional, error) {
	d := &entities.Devotional{Day: day, Source: entities.DevotionalGenerated}

	text, err := s.generator.GenerateText(ctx, systemPrompt, "Today is "+day+". Write today's devotional.")
	if err != nil {
		s.log.Warn().Err(err).Str("day", day).Msg("devotional generation failed, using fallback")
		d.Message = FallbackMessage
		d.Source = entities.DevotionalFallback
	} else {
		d.Message = text
	}

	if err := s.store.Upsert(ctx, d); err != nil {
		s.log.Error().Err(err).Str("day", day).Msg("failed to store devotional")
	}
	return d, nil
}
