package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskb/campuskb/internal/config"
	"github.com/campuskb/campuskb/internal/knowledge"
	"github.com/campuskb/campuskb/internal/log"
)

func TestProvideScraper(t *testing.T) {
	cfg := &config.Config{
		Scraper: config.ScraperConfig{
			TimeoutMS:   30000,
			DelayMS:     1000,
			Parallelism: 4,
		},
	}

	assert.NotNil(t, provideScraper(cfg, log.NewNop()))
}

func TestProvidePrompts_Default(t *testing.T) {
	snap, err := providePrompts(&config.Config{})
	require.NoError(t, err)

	out := snap.Render(knowledge.CategoryGeneral, "c", "q")
	assert.Contains(t, out, "university FAQ assistant")
}

func TestProvidePrompts_OverrideDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "tuition.txt"),
		[]byte("OVERRIDE {context} {question}"), 0o600))

	snap, err := providePrompts(&config.Config{PromptDir: dir})
	require.NoError(t, err)

	out := snap.Render(knowledge.CategoryTuition, "c", "q")
	assert.Contains(t, out, "OVERRIDE")
}

func TestProvidePrompts_BrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, "tuition.txt"),
		[]byte("missing placeholders"), 0o600))

	_, err := providePrompts(&config.Config{PromptDir: dir})
	assert.ErrorContains(t, err, "tuition.txt")
}
