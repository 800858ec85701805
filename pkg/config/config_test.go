package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/config"
)

func TestConfig_ValidateRequiresPaths(t *testing.T) {
	t.Parallel()

	c := &config.Config{}
	require.ErrorIs(t, c.Validate(), config.ErrSourcesDirRequired)

	c = &config.Config{SourcesDir: "/sources"}
	require.ErrorIs(t, c.Validate(), config.ErrIndexCachePathRequired)

	c = &config.Config{SourcesDir: "/sources", IndexCachePath: "/cache.json"}
	require.ErrorIs(t, c.Validate(), config.ErrIndexPathRequired)
}

func TestConfig_ValidateAppliesDefaults(t *testing.T) {
	t.Parallel()

	c := &config.Config{
		SourcesDir:     "/sources",
		IndexCachePath: "/cache.json",
		IndexPath:      "/index.txt",
	}

	require.NoError(t, c.Validate())

	assert.Equal(t, config.DefaultRuntimeRefreshTick, c.RuntimeRefreshTick)
	assert.Equal(t, config.DefaultURLRefreshMinInterval, c.URLRefreshMinInterval)
	assert.Equal(t, config.DefaultWebFetchTimeout, c.WebFetchTimeout)
	assert.Equal(t, config.DefaultURLDownloadConcurrency, c.URLDownloadConcurrency)
	assert.Equal(t, config.DefaultSummarizationConcurrency, c.SummarizationConcurrency)
	assert.Equal(t, []string{"file", "url"}, c.SourceTypeOrder)
}

func TestConfig_ValidateRejectsUnknownSourceType(t *testing.T) {
	t.Parallel()

	c := &config.Config{
		SourcesDir:      "/sources",
		IndexCachePath:  "/cache.json",
		IndexPath:       "/index.txt",
		SourceTypeOrder: []string{"file", "ftp"},
	}

	require.Error(t, c.Validate())
}
