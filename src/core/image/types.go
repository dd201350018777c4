package image

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	stdimage "image"
	"os"
	"path/filepath"
)

var (
	// ErrEmptyImage 图片数据为空
	ErrEmptyImage = errors.New("empty image data")
	// ErrUnsupportedFormat 不支持的图片格式
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// Source 图片来源：磁盘文件或上传的字节。内容摘要用作缓存键
type Source struct {
	Name   string // 显示名（文件名）
	Path   string // 来自磁盘时的路径
	Data   []byte // 原始字节
	Digest string // sha256(Data)
}

// SourceFromBytes 从上传的字节创建图片来源
func SourceFromBytes(name string, data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	sum := sha256.Sum256(data)
	return &Source{
		Name:   name,
		Data:   data,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

// SourceFromFile 从磁盘文件创建图片来源
func SourceFromFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取图片文件失败: %w", err)
	}
	src, err := SourceFromBytes(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	src.Path = path
	return src, nil
}

// Optional 可选图片：区分“未提供”与“已提供”，不使用占位路径
type Optional struct {
	img stdimage.Image
}

// None 未提供图片
func None() Optional { return Optional{} }

// Some 已提供图片，img 为 nil 时等同于 None
func Some(img stdimage.Image) Optional { return Optional{img: img} }

// Get 返回图片及是否存在
func (o Optional) Get() (stdimage.Image, bool) { return o.img, o.img != nil }

// Present 是否提供了图片
func (o Optional) Present() bool { return o.img != nil }

// Metadata 页面元数据表展示的图片信息
type Metadata struct {
	Name        string `json:"name"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	FileSize    int64  `json:"file_size"`
	CameraMake  string `json:"camera_make,omitempty"`
	CameraModel string `json:"camera_model,omitempty"`
	LensModel   string `json:"lens_model,omitempty"`
	TakenAt     string `json:"taken_at,omitempty"`
	FNumber     string `json:"f_number,omitempty"`
	FocalLength string `json:"focal_length,omitempty"`
}

// Decoded 已解码的图片
type Decoded struct {
	Source *Source
	Image  *stdimage.RGBA
	Meta   Metadata
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	IsValid      bool   // 是否有效
	Format       string // 实际格式
	Width        int    // 图片宽度
	Height       int    // 图片高度
	FileSize     int64  // 文件大小
	Error        error  // 错误信息
	SecurityRisk string // 安全风险描述
}

// ImageMetrics 图片处理统计信息
type ImageMetrics struct {
	TotalProcessed    int64 `json:"total_processed"`    // 总处理数量
	FromFile          int64 `json:"from_file"`          // 来自示例文件
	FromUpload        int64 `json:"from_upload"`        // 来自上传
	FailedValidations int64 `json:"failed_validations"` // 验证失败次数
	SecurityIncidents int64 `json:"security_incidents"` // 安全事件次数
}
