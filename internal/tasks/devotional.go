package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"
)

// DevotionalGenerator prepares the message of the day.
type DevotionalGenerator interface {
	Pregenerate(ctx context.Context) error
}

// GenerateDevotionalTask fills today's devotional before the first visitor.
type GenerateDevotionalTask struct{}

// Config returns the queue configuration for devotional generation.
func (t GenerateDevotionalTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "generate_devotional",
		MaxAttempts: 2,
		Backoff:     10 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// GenerateDevotionalProcessor creates a processor function for GenerateDevotionalTask.
func GenerateDevotionalProcessor(gen DevotionalGenerator, log zerolog.Logger) backlite.QueueProcessor[GenerateDevotionalTask] {
	return func(ctx context.Context, _ GenerateDevotionalTask) error {
		if gen == nil {
			return errors.New("devotional generator not configured")
		}
		if err := gen.Pregenerate(ctx); err != nil {
			return err
		}
		log.Debug().Msg("devotional ready")
		return nil
	}
}

// NewGenerateDevotionalQueue creates a backlite queue for devotional generation.
func NewGenerateDevotionalQueue(gen DevotionalGenerator, log zerolog.Logger) backlite.Queue {
	return backlite.NewQueue(GenerateDevotionalProcessor(gen, log))
}
