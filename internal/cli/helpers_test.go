package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s100fed/fedroute/internal/cli"
	"github.com/s100fed/fedroute/internal/config"
	"github.com/s100fed/fedroute/internal/directory/cache"
)

const testSnapshot = `nodes:
  - id: global
    name: IHO Global Root
    level: 0
    health: HEALTHY
    active: true
  - id: cn-msa
    name: China MSA
    level: 1
    health: HEALTHY
    active: true
    parent_id: global
    coverage: "73,3,135,54"
  - id: uk-hydro
    name: UK Hydrographic Office
    level: 1
    health: OFFLINE
    active: true
    parent_id: global
    coverage: "-8,49,2,61"
capabilities:
  - id: cap-global-s101-wms
    node_id: global
    product_type: S101
    service_type: WMS
    enabled: true
    endpoint: https://global.example.org/s101/wms
  - id: cap-cn-s101-wms
    node_id: cn-msa
    product_type: S101
    service_type: WMS
    enabled: true
    endpoint: https://msa.example.cn/s101/wms
  - id: cap-uk-s101-wms
    node_id: uk-hydro
    product_type: S101
    service_type: WMS
    enabled: true
    endpoint: https://ukho.example.gov.uk/s101/wms
`

const testCapabilities = `<WMS_Capabilities version="1.3.0"/>`

// setupCLITest isolates the config directory and environment for one test.
func setupCLITest(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvHome, t.TempDir())
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvLogFormat, "")
	t.Setenv(config.EnvListen, "")
	t.Setenv(config.EnvDatabaseURL, "")
	t.Setenv(config.EnvMinConfidence, "")
	t.Setenv(cache.EnvTTLSeconds, "")
	t.Setenv(cache.EnvCacheEnabled, "")
	t.Cleanup(config.ResetGlobalConfigForTest)
}

// writeFixtureConfig writes a snapshot, a static capabilities document and a config
// file referencing both, and returns the config path. mutate may adjust the config
// before it is saved.
func writeFixtureConfig(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()

	snapshotPath := filepath.Join(dir, "directory.yaml")
	require.NoError(t, os.WriteFile(snapshotPath, []byte(testSnapshot), 0o600))
	capsPath := filepath.Join(dir, "capabilities.xml")
	require.NoError(t, os.WriteFile(capsPath, []byte(testCapabilities), 0o600))

	cfg := config.New()
	cfg.Directory.Snapshot = snapshotPath
	cfg.Renderers = []config.RendererConfig{{
		Product:     "S101",
		Service:     "WMS",
		Kind:        "static",
		File:        capsPath,
		ContentType: "text/xml",
	}}
	if mutate != nil {
		mutate(cfg)
	}

	path := filepath.Join(dir, config.ConfigFileName)
	require.NoError(t, cfg.Save(path))
	return path
}

// execute runs the root command with args and returns the combined output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := cli.NewRootCmd("test")
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
