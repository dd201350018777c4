package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCfgServiceHidesSecrets(t *testing.T) {
	gin.SetMode(gin.TestMode)

	config := &configs.Config{}
	config.SetDefaults()
	config.Server.Password = "letmein"
	config.Server.TokenSecret = "very-secret"
	config.Images.Sets = []configs.ImageSetConfig{{Name: "Flatiron Image", Primary: "a.jpg", Depth: "b.jpg"}}

	logger, err := utils.NewTestLogger(t.TempDir())
	require.NoError(t, err)
	defer logger.Close()

	service, err := NewDefaultCfgService(config, logger)
	require.NoError(t, err)

	engine := gin.New()
	require.NoError(t, service.Start(context.Background(), engine, engine.Group("/api")))

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cfg", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "letmein")
	assert.NotContains(t, body, "very-secret")

	var resp struct {
		Status string       `json:"status"`
		Config PublicConfig `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Config.PasswordRequired)
	assert.Equal(t, 50, resp.Config.MaxBrightness)
	require.Len(t, resp.Config.ImageSets, 1)
	assert.Equal(t, "Flatiron Image", resp.Config.ImageSets[0].Name)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/cfg", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
