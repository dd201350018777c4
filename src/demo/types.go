package demo

import (
	"html/template"

	"depthdemo-server-go/src/core/compose"
	imgpkg "depthdemo-server-go/src/core/image"
)

// APIResponse API标准响应结构
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// StatusData 服务状态
type StatusData struct {
	Sessions       int                 `json:"sessions"`
	ImageSets      []string            `json:"image_sets"`
	RecorderRoot   string              `json:"recorder_root,omitempty"`
	Compositor     compose.Stats       `json:"compositor"`
	ImageProcessor imgpkg.ImageMetrics `json:"image_processor"`
}

// TestCaseView 测试用例列表项
type TestCaseView struct {
	SequenceNumber int                `json:"sequence_number"`
	Dir            string             `json:"dir"`
	HasEV          bool               `json:"has_ev"`
	Params         compose.Parameters `json:"params"`
	Brightness     *int               `json:"brightness,omitempty"`
	CreatedAt      string             `json:"created_at,omitempty"`
}

// frameView 页面上的一个图片框
type frameView struct {
	Title string
	Src   template.URL // 为空时显示占位
}

// metaRow 元数据表的一行
type metaRow struct {
	Role string
	imgpkg.Metadata
}

// pageView 演示页面视图模型
type pageView struct {
	ImageSets     []string
	SelectedSet   string
	CustomSet     string
	Message       string
	Params        compose.Parameters
	Brightness    int
	MaxBrightness int
	Frames        []frameView
	Metadata      []metaRow

	Rendered       bool
	DownloadURL    template.URL
	DownloadName   string
	Recorded       bool
	SequenceNumber int
}

// loginView 登录页面视图模型
type loginView struct {
	Message string
}
