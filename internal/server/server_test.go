package server

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nightlab/exchange/internal/config"
	"github.com/nightlab/exchange/internal/logging"
)

func devConfig() config.Config {
	return config.Config{
		AppName:       "test",
		AppEnv:        "development",
		Port:          "0",
		AuthTestMode:  true,
		AuthMaxAge:    24 * time.Hour,
		RequisitesTTL: 20 * time.Minute,
		SweepSchedule: "@every 1m",
	}
}

func TestNewInMemory(t *testing.T) {
	srv, err := New(devConfig(), nil, nil, logging.Discard())
	require.NoError(t, err)
	require.NotNil(t, srv.sweeper)

	resp, err := srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/user/profile", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, "bypass identity is provisioned on first use")

	resp, err = srv.App().Test(httptest.NewRequest(fiber.MethodGet, "/api/application/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestNewRejectsMissingStoresOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.AppEnv = "production"
	_, err := New(cfg, nil, nil, logging.Discard())
	assert.Error(t, err)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	cfg := devConfig()
	cfg.SweepSchedule = "whenever"
	_, err := New(cfg, nil, nil, logging.Discard())
	assert.Error(t, err)
}
