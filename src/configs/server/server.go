package server

import (
	"context"
	"net/http"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// PublicConfig 对外公开的配置，不含口令和密钥
type PublicConfig struct {
	PasswordRequired bool                     `json:"password_required"`
	SessionTTL       string                   `json:"session_ttl"`
	ImageSets        []configs.ImageSetConfig `json:"image_sets"`
	JPEGQuality      int                      `json:"jpeg_quality"`
	MaxFileSize      int64                    `json:"max_file_size"`
	AllowedFormats   []string                 `json:"allowed_formats"`
	MaxBrightness    int                      `json:"max_brightness"`
	CacheSize        int                      `json:"cache_size"`
	Recorder         configs.RecorderConfig   `json:"recorder"`
}

type DefaultCfgService struct {
	logger *utils.Logger
	config *configs.Config
}

var _ CfgService = (*DefaultCfgService)(nil)

// NewDefaultCfgService 构造函数
func NewDefaultCfgService(config *configs.Config, logger *utils.Logger) (*DefaultCfgService, error) {
	service := &DefaultCfgService{
		logger: logger,
		config: config,
	}

	return service, nil
}

// Start 实现 CfgService 接口，注册所有 Cfg 相关路由
func (s *DefaultCfgService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/cfg", s.handleGet)
	apiGroup.OPTIONS("/cfg", s.handleOptions)

	s.logger.Info("Cfg HTTP服务路由注册完成")
	return nil
}

// Public 生成公开配置
func (s *DefaultCfgService) Public() PublicConfig {
	c := s.config
	return PublicConfig{
		PasswordRequired: c.Server.Password != "",
		SessionTTL:       c.Server.SessionTTL,
		ImageSets:        c.Images.Sets,
		JPEGQuality:      c.Images.JPEGQuality,
		MaxFileSize:      c.Images.Security.MaxFileSize,
		AllowedFormats:   c.Images.Security.AllowedFormats,
		MaxBrightness:    c.Compose.MaxBrightness,
		CacheSize:        c.Compose.CacheSize,
		Recorder:         c.Recorder,
	}
}

func (s *DefaultCfgService) handleGet(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"config": s.Public(),
	})
}

func (s *DefaultCfgService) handleOptions(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusNoContent)
}
