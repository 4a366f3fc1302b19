/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/badu/httpcore"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "httpcore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsForOmittedKeys(t *testing.T) {
	path := writeTempConfig(t, "connector:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Connector.Port)
	assert.Equal(t, "0.0.0.0", cfg.Connector.Host)
	assert.True(t, cfg.Connector.TCPNoDelay)
	assert.Equal(t, 30000, cfg.Async.DefaultTimeout)
	assert.Equal(t, "rfc7230", cfg.HTTP.HTTPCompliance)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeTempConfig(t, "connector:\n  port: 8080\n  max_idle_time: 45s\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45_000_000_000, int(cfg.Connector.MaxIdleTime))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidatePortOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.Connector.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)

	ce, ok := err.(*core.CoreError)
	require.True(t, ok)
	assert.Equal(t, core.KindConfigurationInvalid, ce.Kind)
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	cfg.Connector.Port = 8080
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingPort(t *testing.T) {
	cfg := Default()
	cfg.Connector.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
}
