package configs

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP           string `yaml:"ip"`
		Port         int    `yaml:"port"`
		Password     string `yaml:"password"`      // 演示页面共享口令
		TokenSecret  string `yaml:"token_secret"`  // 会话token签名密钥
		SessionTTL   string `yaml:"session_ttl"`   // 会话空闲过期时间，如 "2h"
		SecureCookie bool   `yaml:"secure_cookie"` // 仅HTTPS下发送cookie
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Images   ImagesConfig   `yaml:"images"`
	Compose  ComposeConfig  `yaml:"compose"`
	Recorder RecorderConfig `yaml:"recorder"`
}

// ImageSetConfig 示例图片组
type ImageSetConfig struct {
	Name    string `yaml:"name" json:"name"`
	Primary string `yaml:"primary" json:"primary"`
	Depth   string `yaml:"depth" json:"depth"`
	EV      string `yaml:"ev" json:"ev,omitempty"` // 可为空
}

// SecurityConfig 上传图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`   // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`      // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`       // 最大宽度
	MaxHeight      int      `yaml:"max_height"`      // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"` // 允许的图片格式
	EnableDeepScan bool     `yaml:"enable_deep_scan"`
}

// ImagesConfig 图片相关配置
type ImagesConfig struct {
	Sets        []ImageSetConfig `yaml:"sets"`
	JPEGQuality int              `yaml:"jpeg_quality"`
	Security    SecurityConfig   `yaml:"security"`
}

// ComposeConfig 合成器配置
type ComposeConfig struct {
	CacheSize     int `yaml:"cache_size"`     // 未配置时为16，负数表示不缓存
	MaxBrightness int `yaml:"max_brightness"` // 页面滑块上限
}

// RecorderConfig 测试用例记录配置
type RecorderConfig struct {
	Enabled        bool   `yaml:"enabled" json:"enabled"`
	Root           string `yaml:"root" json:"root"`
	SkipMalformed  bool   `yaml:"skip_malformed" json:"skip_malformed"`   // 跳过不符合 test_<N> 的目录项
	ReserveRetries int    `yaml:"reserve_retries" json:"reserve_retries"` // 目录冲突时的重试次数，0 表示不重试
	Index          bool   `yaml:"index" json:"index"`                     // 同时写入数据库索引
}

// LoadConfig 从文件加载配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	config, err := LoadConfigFrom(path)
	return config, path, err
}

// LoadConfigFrom 从指定路径加载配置并补全默认值
func LoadConfigFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	config.SetDefaults()

	return config, nil
}

// SetDefaults 填充未配置项
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8501
	}
	if c.Server.SessionTTL == "" {
		c.Server.SessionTTL = "2h"
	}
	if c.Log.LogDir == "" {
		c.Log.LogDir = "logs"
	}
	if c.Log.LogFile == "" {
		c.Log.LogFile = "server.log"
	}
	if c.Log.LogLevel == "" {
		c.Log.LogLevel = "INFO"
	}
	if c.Images.JPEGQuality <= 0 || c.Images.JPEGQuality > 100 {
		c.Images.JPEGQuality = 75
	}
	sec := &c.Images.Security
	if sec.MaxFileSize == 0 {
		sec.MaxFileSize = 10 * 1024 * 1024
	}
	if sec.MaxWidth == 0 {
		sec.MaxWidth = 8192
	}
	if sec.MaxHeight == 0 {
		sec.MaxHeight = 8192
	}
	if sec.MaxPixels == 0 {
		sec.MaxPixels = 40_000_000
	}
	if len(sec.AllowedFormats) == 0 {
		sec.AllowedFormats = []string{"jpeg", "png", "gif", "bmp", "webp", "tiff"}
	}
	if c.Compose.CacheSize == 0 {
		c.Compose.CacheSize = 16
	}
	if c.Compose.MaxBrightness == 0 {
		c.Compose.MaxBrightness = 50
	}
	if c.Recorder.Root == "" {
		c.Recorder.Root = "tests"
	}
}

// ApplyEnv 用环境变量（通常来自 .env）覆盖敏感配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DEMO_PASSWORD"); v != "" {
		c.Server.Password = v
	}
	if v := os.Getenv("DEMO_TOKEN_SECRET"); v != "" {
		c.Server.TokenSecret = v
	}
	if v := os.Getenv("DEMO_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DEMO_RECORDER_ROOT"); v != "" {
		c.Recorder.Root = v
	}
}
