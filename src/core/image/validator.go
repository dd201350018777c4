package image

import (
	"bytes"
	"fmt"
	stdimage "image"
	"strings"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/utils"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// ImageSecurityValidator 上传图片安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// 图片格式魔数签名
var imageSignatures = []struct {
	format    string
	signature []byte
}{
	{"jpeg", []byte{0xFF, 0xD8}},
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"gif", []byte{0x47, 0x49, 0x46, 0x38}},
	{"webp", []byte{0x52, 0x49, 0x46, 0x46}}, // RIFF，需要进一步检查WEBP标识
	{"bmp", []byte{0x42, 0x4D}},
	{"tiff", []byte{0x49, 0x49, 0x2A, 0x00}},
	{"tiff", []byte{0x4D, 0x4D, 0x00, 0x2A}},
}

// 出现在文件开头即视为可疑的签名
var executableSignatures = []struct {
	name      string
	signature []byte
}{
	{"PE", []byte{0x4D, 0x5A}},
	{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"Mach-O", []byte{0xCA, 0xFE, 0xBA, 0xBE}},
	{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"GZIP", []byte{0x1F, 0x8B, 0x08}},
}

// DetectFormat 根据文件头检测图片格式，无法识别时返回空字符串
func DetectFormat(data []byte) string {
	for _, s := range imageSignatures {
		if !bytes.HasPrefix(data, s.signature) {
			continue
		}
		if s.format == "webp" && (len(data) < 12 || !bytes.Equal(data[8:12], []byte("WEBP"))) {
			continue
		}
		return s.format
	}
	return ""
}

// Validate 验证图片字节
func (v *ImageSecurityValidator) Validate(data []byte) ValidationResult {
	result := ValidationResult{IsValid: false, FileSize: int64(len(data))}

	if len(data) == 0 {
		result.Error = ErrEmptyImage
		return result
	}

	// 1. 基础大小检查
	if v.config.MaxFileSize > 0 && int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("文件大小超限: %d bytes，最大允许: %d bytes", len(data), v.config.MaxFileSize)
		result.SecurityRisk = "文件过大"
		v.logger.Warn("检测到超大文件", map[string]interface{}{
			"size":     len(data),
			"max_size": v.config.MaxFileSize,
		})
		return result
	}

	// 2. 可执行文件/压缩包签名
	if v.config.EnableDeepScan {
		for _, s := range executableSignatures {
			if bytes.HasPrefix(data, s.signature) {
				result.Error = fmt.Errorf("%w: 检测到%s文件签名", ErrUnsupportedFormat, s.name)
				result.SecurityRisk = "文件开头为非图片签名"
				v.logger.Warn("文件开头检测到可疑签名", map[string]interface{}{
					"signature_type": s.name,
					"signature_hex":  fmt.Sprintf("%x", s.signature),
				})
				return result
			}
		}
	}

	// 3. 文件头格式检查
	format := DetectFormat(data)
	if format == "" {
		result.Error = fmt.Errorf("%w: 无法识别的文件头 %x", ErrUnsupportedFormat, data[:min(len(data), 8)])
		return result
	}
	if !v.isFormatAllowed(format) {
		result.Error = fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		result.SecurityRisk = "使用了不被允许的格式"
		return result
	}

	// 4. 解码头部获取尺寸
	return v.validateImageDecoding(data, format)
}

// isFormatAllowed 检查格式是否被允许
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 {
		return true
	}
	for _, allowed := range v.config.AllowedFormats {
		allowed = strings.ToLower(allowed)
		if allowed == format || (allowed == "jpg" && format == "jpeg") {
			return true
		}
	}
	return false
}

// validateImageDecoding 验证图片解码
func (v *ImageSecurityValidator) validateImageDecoding(data []byte, format string) ValidationResult {
	result := ValidationResult{Format: format, FileSize: int64(len(data))}

	config, actualFormat, err := stdimage.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("图片解码失败: %v", err)
		result.SecurityRisk = "损坏的图片数据"
		return result
	}
	if actualFormat != "" {
		result.Format = actualFormat
	}

	// 检查尺寸限制
	if (v.config.MaxWidth > 0 && config.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && config.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("图片尺寸超限: %dx%d，最大允许: %dx%d",
			config.Width, config.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "图片过大，可能消耗过多资源"
		return result
	}

	// 检查像素总数
	totalPixels := int64(config.Width) * int64(config.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("像素总数超限: %d，最大允许: %d", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "像素过多，可能导致内存耗尽"
		return result
	}

	result.IsValid = true
	result.Width = config.Width
	result.Height = config.Height

	v.logger.Debug("图片验证成功", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})

	return result
}
