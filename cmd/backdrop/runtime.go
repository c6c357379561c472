package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"github.com/Protocol-Lattice/backdrop/src/config"
	"github.com/Protocol-Lattice/backdrop/src/models"
	"github.com/Protocol-Lattice/backdrop/src/store"
	"github.com/Protocol-Lattice/backdrop/src/studio"
)

// loadConfig reads the config named by the persistent --config flag.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// buildStudio wires the configured provider, describer and history store into a studio.
func buildStudio(ctx context.Context, cmd *cobra.Command, cfg config.Config) (*studio.Studio, error) {
	logger := pslog.Ctx(ctx)

	key, _ := cmd.Flags().GetString("api-key")
	if strings.TrimSpace(key) == "" {
		key = models.APIKeyFromEnv(cfg.Provider)
	}

	history, err := store.Open(ctx, cfg.History)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	logger.Info("history store ready", "store", cfg.History.Store)

	describer, err := models.NewDescriber(ctx, cfg.Describer.Provider, cfg.Describer.Model)
	if err != nil {
		_ = history.Close(ctx)
		return nil, err
	}

	loader := func(ctx context.Context, apiKey string) (models.ImageService, error) {
		svc, err := models.NewImageProvider(ctx, cfg.Provider, cfg.Model, apiKey)
		if err != nil {
			return nil, err
		}
		return models.WrapWithCache(svc, cfg.Cache.Size, cfg.Cache.TTL(), cfg.Cache.Path), nil
	}

	return studio.New(loader,
		studio.WithAPIKey(key),
		studio.WithMaxInFlight(cfg.Limits.MaxInFlight),
		studio.WithMaxBatch(cfg.Limits.MaxBatch),
		studio.WithDescriber(describer),
		studio.WithHistoryStore(history),
	)
}

func readImage(path string) (models.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Image{}, err
	}
	img := models.DetectImage(path, "", data)
	if !models.IsImage(img) {
		return models.Image{}, fmt.Errorf("%s is not an image", path)
	}
	return img, nil
}

func readImages(paths []string) ([]models.Image, error) {
	images := make([]models.Image, 0, len(paths))
	for _, path := range paths {
		img, err := readImage(path)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// writeItems stores every item under dir as <kind>-<id><ext> and returns the paths.
func writeItems(dir string, items []studio.HistoryItem) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(items))
	for _, item := range items {
		path := filepath.Join(dir, itemFileName(item))
		if err := os.WriteFile(path, item.Image.Data, 0o644); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func itemFileName(item studio.HistoryItem) string {
	name := string(item.Kind) + "-" + item.ID
	if item.Variant > 0 {
		name = fmt.Sprintf("%s-%s-v%d", item.Kind, item.ID, item.Variant)
	}
	return name + models.ExtensionFor(item.Image.MIME)
}

// reportOutcome writes the produced files and turns a failed outcome into an error.
func reportOutcome(cmd *cobra.Command, outDir string, outcome studio.BatchOutcome, runErr error) error {
	logger := pslog.Ctx(cmd.Context())
	paths, err := writeItems(outDir, outcome.Items)
	for _, path := range paths {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
	}
	if err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if outcome.Failed > 0 {
		logger.Warn("some variations failed", "failed", outcome.Failed, "message", outcome.Message)
	}
	return nil
}

func closeStudio(ctx context.Context, st *studio.Studio) {
	if err := st.Close(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, context.Canceled) {
		pslog.Ctx(ctx).Warn("studio close failed", "err", err)
	}
}
