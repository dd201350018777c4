package image

import (
	"fmt"
	"sync/atomic"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/utils"
)

// ImageProcessor 图片处理器：校验、解码、提取元数据
type ImageProcessor struct {
	config    *configs.ImagesConfig
	validator *ImageSecurityValidator
	logger    *utils.Logger
	metrics   *ImageMetrics
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(config *configs.ImagesConfig, logger *utils.Logger) *ImageProcessor {
	return &ImageProcessor{
		config:    config,
		validator: NewImageSecurityValidator(&config.Security, logger),
		logger:    logger,
		metrics:   &ImageMetrics{},
	}
}

// Validate 校验上传的原始字节
func (p *ImageProcessor) Validate(data []byte) ValidationResult {
	result := p.validator.Validate(data)
	if !result.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if result.SecurityRisk != "" {
			atomic.AddInt64(&p.metrics.SecurityIncidents, 1)
		}
	}
	return result
}

// Load 校验并解码图片来源
func (p *ImageProcessor) Load(src *Source) (*Decoded, error) {
	if src == nil {
		return nil, ErrEmptyImage
	}
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)
	if src.Path != "" {
		atomic.AddInt64(&p.metrics.FromFile, 1)
	} else {
		atomic.AddInt64(&p.metrics.FromUpload, 1)
	}

	validation := p.Validate(src.Data)
	if !validation.IsValid {
		p.logger.Warn("图片验证失败", map[string]interface{}{
			"name":          src.Name,
			"error":         validation.Error.Error(),
			"security_risk": validation.SecurityRisk,
		})
		return nil, fmt.Errorf("图片 %s 验证失败: %w", src.Name, validation.Error)
	}

	img, format, err := DecodeBytes(src.Data)
	if err != nil {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		return nil, fmt.Errorf("图片 %s 解码失败: %w", src.Name, err)
	}

	meta := Metadata{
		Name:     src.Name,
		Format:   format,
		Width:    img.Bounds().Dx(),
		Height:   img.Bounds().Dy(),
		FileSize: int64(len(src.Data)),
	}
	readExif(src.Data, &meta)

	p.logger.Debug("图片解码完成", map[string]interface{}{
		"name":   src.Name,
		"format": meta.Format,
		"width":  meta.Width,
		"height": meta.Height,
		"digest": src.Digest,
	})

	return &Decoded{Source: src, Image: img, Meta: meta}, nil
}

// GetMetrics 获取处理统计信息
func (p *ImageProcessor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		FromFile:          atomic.LoadInt64(&p.metrics.FromFile),
		FromUpload:        atomic.LoadInt64(&p.metrics.FromUpload),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		SecurityIncidents: atomic.LoadInt64(&p.metrics.SecurityIncidents),
	}
}
