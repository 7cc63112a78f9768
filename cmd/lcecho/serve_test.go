// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package main

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ysyzqq/lcepoll"
)

func TestLoadServeConfigDefaults(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	cfg, err := loadServeConfig()
	require.NoError(t, err)
	assert.Equal(t, lcepoll.Config{Port: 8888, Workers: 4, MaxConnections: 200}, cfg)
}

func TestLoadServeConfigOverrides(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	path := filepath.Join(t.TempDir(), "lcecho.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9000\nworkers: 2\nmax_connections: 50\n"), 0o600))
	viper.Set("config", path)
	viper.Set("workers", 8)

	cfg, err := loadServeConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 50, cfg.MaxConnections)
}

func TestLoadServeConfigFromEnv(t *testing.T) {
	viper.Reset()
	defer viper.Reset()
	initConfig()
	t.Setenv("LCEPOLL_MAX_CONNECTIONS", "0")

	_, err := loadServeConfig()
	assert.ErrorIs(t, err, lcepoll.ErrInvalidConfig)
}

func TestMetricsHandler(t *testing.T) {
	svr, err := lcepoll.NewServer(lcepoll.Config{BindAddress: "127.0.0.1", Workers: 1, MaxConnections: 2},
		lcepoll.WithLockOSThread(false))
	require.NoError(t, err)
	defer svr.Destroy()

	rec := httptest.NewRecorder()
	metricsHandler(svr).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "lcepoll_connections_active 0")
}
