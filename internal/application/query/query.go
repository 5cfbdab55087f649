// Package query contains read operations (CQRS - Queries).
// Every read decays mastery records as of the query time; nothing here
// writes to storage.
package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alem-hub/mastery-tracker/internal/domain/mastery"
	"github.com/alem-hub/mastery-tracker/internal/domain/shared"
)

var tracer = otel.Tracer("github.com/alem-hub/mastery-tracker/internal/application/query")

// ══════════════════════════════════════════════════════════════════════════════
// SHARED CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config is shared by the read handlers.
type Config struct {
	// Policy holds the mastery model constants used for decay.
	Policy mastery.Policy

	// Weights tune the recommendation priority.
	Weights mastery.Weights

	// DefaultRecommendations is used by the dashboard.
	DefaultRecommendations int

	// MaxLimit caps recommendation and event page sizes.
	MaxLimit int

	// Location decides calendar days for streaks.
	Location *time.Location

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Policy:                 mastery.DefaultPolicy(),
		Weights:                mastery.DefaultWeights(),
		DefaultRecommendations: 10,
		MaxLimit:               100,
		Location:               time.UTC,
		Now:                    time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Policy == (mastery.Policy{}) {
		c.Policy = d.Policy
	}
	if c.Weights == (mastery.Weights{}) {
		c.Weights = d.Weights
	}
	if c.DefaultRecommendations <= 0 {
		c.DefaultRecommendations = d.DefaultRecommendations
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.Location == nil {
		c.Location = d.Location
	}
	if c.Now == nil {
		c.Now = d.Now
	}
	return c
}

// HeatmapCache is an optional read-through cache for built heatmaps.
type HeatmapCache interface {
	// Get returns a cached heatmap and the cache generation it read. The
	// generation is passed back to Set after a miss.
	Get(ctx context.Context, userID shared.UserID, subject string) (hm mastery.Heatmap, generation int64, ok bool)
	Set(ctx context.Context, userID shared.UserID, subject string, generation int64, hm mastery.Heatmap)
}

func startSpan(ctx context.Context, name string, userID shared.UserID) (context.Context, trace.Span) {
	return tracer.Start(ctx, "query."+name, trace.WithAttributes(attribute.String("user.id", userID.String())))
}

// fail records err on the span and wraps non-domain errors as storage failures.
func fail(span trace.Span, domain, op string, err error) error {
	err = shared.StorageError(domain, op, err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
