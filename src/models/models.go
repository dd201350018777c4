package models

import (
	"time"

	"gorm.io/datatypes"
)

// TestCase 测试用例索引，每条对应磁盘上一个 test_<N> 目录。
// 并发记录时序号可能重复，因此不建唯一索引
type TestCase struct {
	ID             uint   `gorm:"primaryKey"`
	SequenceNumber int    `gorm:"index;not null"`
	Dir            string `gorm:"not null"`
	Brightness     int
	HasEV          bool
	OutputWidth    int
	OutputHeight   int
	Parameters     datatypes.JSON // compose.Parameters
	PrimaryMeta    datatypes.JSON // 主图尺寸与EXIF
	CreatedAt      time.Time
}

// TableName 表名
func (TestCase) TableName() string {
	return "test_cases"
}
