package firstboot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoinst/internal/answer"
	"autoinst/internal/config"
)

const hookScript = "#!/bin/sh\necho first boot\n"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.New()
	require.NoError(t, err)
	cfg.SetCdromDir(t.TempDir())
	cfg.SetRuntimeDir(t.TempDir())
	return cfg
}

func mockGet(t *testing.T, body string, err error) *[]string {
	t.Helper()
	orig := httpGet
	t.Cleanup(func() { httpGet = orig })
	var urls []string
	httpGet = func(url, fingerprint string) (string, error) {
		urls = append(urls, url)
		return body, err
	}
	return &urls
}

func TestPrepareFromISO(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.FirstBootSourcePath(), []byte(hookScript), 0644))

	path, err := Prepare(cfg, &answer.FirstBootHookInfo{Source: answer.FirstBootFromISO})
	require.NoError(t, err)
	assert.Equal(t, cfg.FirstBootHookPath(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hookScript, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), info.Mode().Perm())
}

func TestPrepareFromURL(t *testing.T) {
	cfg := testConfig(t)
	urls := mockGet(t, hookScript, nil)

	path, err := Prepare(cfg, &answer.FirstBootHookInfo{
		Source: answer.FirstBootFromURL,
		URL:    "https://deploy.example/hook.sh",
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, hookScript, string(data))
	assert.Equal(t, []string{"https://deploy.example/hook.sh"}, *urls)
}

func TestPrepareNilInfo(t *testing.T) {
	cfg := testConfig(t)

	path, err := Prepare(cfg, nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	_, err = os.Stat(cfg.FirstBootHookPath())
	assert.True(t, os.IsNotExist(err))
}

func TestFetchMissingISOFile(t *testing.T) {
	cfg := testConfig(t)

	_, err := Fetch(cfg, &answer.FirstBootHookInfo{Source: answer.FirstBootFromISO})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.FirstBootFile)
}

func TestFetchURLError(t *testing.T) {
	cfg := testConfig(t)
	mockGet(t, "", fmt.Errorf("connection refused"))

	_, err := Fetch(cfg, &answer.FirstBootHookInfo{
		Source: answer.FirstBootFromURL,
		URL:    "https://deploy.example/hook.sh",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching first boot hook")
}

func TestFetchOversizedHook(t *testing.T) {
	cfg := testConfig(t)
	mockGet(t, strings.Repeat("a", MaxHookSize+1), nil)

	_, err := Fetch(cfg, &answer.FirstBootHookInfo{
		Source: answer.FirstBootFromURL,
		URL:    "https://deploy.example/hook.sh",
	})
	assert.EqualError(t, err, "first boot hook is larger than 1048576 bytes")
}

func TestFetchOversizedISOHook(t *testing.T) {
	cfg := testConfig(t)
	big := strings.Repeat("b", MaxHookSize+1)
	require.NoError(t, os.WriteFile(cfg.FirstBootSourcePath(), []byte(big), 0644))

	_, err := Fetch(cfg, &answer.FirstBootHookInfo{Source: answer.FirstBootFromISO})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "larger than")

	_, err = os.Stat(filepath.Join(cfg.RuntimeDir(), "first-boot-hook"))
	assert.True(t, os.IsNotExist(err))
}
