package recorder

import (
	"context"
	"encoding/json"
	"fmt"

	"depthdemo-server-go/src/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GormIndex 基于gorm的测试用例索引
type GormIndex struct {
	db *gorm.DB
}

// NewGormIndex 创建索引，db 需已完成迁移
func NewGormIndex(db *gorm.DB) *GormIndex {
	return &GormIndex{db: db}
}

// Index 写入一条索引
func (ix *GormIndex) Index(ctx context.Context, entry Entry) error {
	params, err := json.Marshal(entry.Params)
	if err != nil {
		return fmt.Errorf("序列化参数失败: %v", err)
	}
	meta, err := json.Marshal(entry.PrimaryMeta)
	if err != nil {
		return fmt.Errorf("序列化元数据失败: %v", err)
	}

	row := &models.TestCase{
		SequenceNumber: entry.SequenceNumber,
		Dir:            entry.Dir,
		Brightness:     entry.Brightness,
		HasEV:          entry.HasEV,
		OutputWidth:    entry.OutputWidth,
		OutputHeight:   entry.OutputHeight,
		Parameters:     datatypes.JSON(params),
		PrimaryMeta:    datatypes.JSON(meta),
		CreatedAt:      entry.CreatedAt,
	}
	return ix.db.WithContext(ctx).Create(row).Error
}

// Recent 最近记录的测试用例，按序号倒序
func (ix *GormIndex) Recent(ctx context.Context, limit int) ([]models.TestCase, error) {
	var rows []models.TestCase
	q := ix.db.WithContext(ctx).Order("sequence_number desc, id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询测试用例索引失败: %w", err)
	}
	return rows, nil
}
