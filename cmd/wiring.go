package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/kozaktomas/picscreenr/internal/caption"
	"github.com/kozaktomas/picscreenr/internal/config"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/database/postgres"
	"github.com/kozaktomas/picscreenr/internal/extract"
	"github.com/kozaktomas/picscreenr/internal/ingest"
	"github.com/kozaktomas/picscreenr/internal/notify"
	"github.com/kozaktomas/picscreenr/internal/resolver"
)

// connectDatabase opens the pool, applies migrations and registers the PostgreSQL
// repositories as the database backend.
func connectDatabase(ctx context.Context, cfg *config.Config) (*postgres.Pool, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	pool, err := postgres.Connect(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	registryRepo := postgres.NewRegistryRepository(pool)
	imageRepo := postgres.NewImageRepository(pool)
	database.RegisterPostgresBackend(
		func() database.Registry { return registryRepo },
		func() database.ImageReader { return imageRepo },
	)
	return pool, nil
}

// buildPipeline wires captioner, extractors, resolver and notifier into an ingest pipeline.
// The returned cleanup releases the notifier connection and any local models.
func buildPipeline(ctx context.Context, cfg *config.Config) (*ingest.Pipeline, func(), error) {
	registry, err := database.GetRegistry(ctx)
	if err != nil {
		return nil, nil, err
	}

	captioner, err := caption.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create captioner: %w", err)
	}
	faces, err := extract.NewFaceExtractor(cfg.Extractor)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create face extractor: %w", err)
	}
	appearance, err := extract.NewAppearanceExtractor(cfg.Extractor, cfg.Ingest.HistogramBins)
	if err != nil {
		closeIfCloser(faces)
		return nil, nil, fmt.Errorf("failed to create appearance extractor: %w", err)
	}
	notifier, err := notify.New(cfg.MQTT)
	if err != nil {
		closeIfCloser(faces)
		return nil, nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	res := resolver.New(registry, resolver.Config{
		Tolerance:   cfg.Matching.FaceTolerance,
		Threshold:   cfg.Matching.AppearanceThreshold,
		MaxAttempts: cfg.Matching.MaxResolveAttempts,
	})

	pipeline, err := ingest.New(cfg.Ingest, ingest.Deps{
		Captioner:  captioner,
		Faces:      faces,
		Appearance: appearance,
		Resolver:   res,
		Notifier:   notifier,
	})
	if err != nil {
		notifier.Close()
		closeIfCloser(faces)
		return nil, nil, err
	}

	fmt.Printf("Caption provider: %s\n", captioner.Name())
	fmt.Printf("Face extractor: %s, histogram: %s\n", orDefault(cfg.Extractor.Face, "http"), orDefault(cfg.Extractor.Histogram, "native"))
	if cfg.MQTT.Enabled() {
		fmt.Printf("Publishing identification events to %s on %s\n", cfg.MQTT.Broker, cfg.MQTT.Topic)
	}

	cleanup := func() {
		notifier.Close()
		closeIfCloser(faces)
	}
	return pipeline, cleanup, nil
}

func closeIfCloser(v any) {
	if c, ok := v.(io.Closer); ok {
		c.Close()
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
