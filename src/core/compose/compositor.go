package compose

import (
	"fmt"
	stdimage "image"
	"sync"
	"time"

	imgpkg "depthdemo-server-go/src/core/image"
	"depthdemo-server-go/src/core/utils"

	"github.com/codahale/hdrhistogram"
	"golang.org/x/sync/singleflight"
)

// Parameters 表单里的自由文本参数，不参与合成，只写入测试用例
type Parameters struct {
	EVChoice         string `json:"ev_choice"`
	FocusCoordinates string `json:"focus_coordinates"`
	LensSimulation   string `json:"lens_simulation"`
	DepthOfField     string `json:"depth_of_field"`
	FStop            string `json:"fstop"`
	ImageFormat      string `json:"image_format"`
	DepthFormat      string `json:"depth_format"`
}

// Request 一次提交的合成请求，构造后不再修改
type Request struct {
	Primary    *imgpkg.Decoded
	Depth      *imgpkg.Decoded
	EV         *imgpkg.Decoded // nil 表示未提供EV图片
	Brightness int
	Params     Parameters
}

// EVImage 以可选类型返回EV图片
func (r Request) EVImage() imgpkg.Optional {
	if r.EV == nil {
		return imgpkg.None()
	}
	return imgpkg.Some(r.EV.Image)
}

// Key 基于图片内容摘要的缓存键，与文件路径无关
func (r Request) Key() string {
	ev := "-"
	if r.EV != nil {
		ev = r.EV.Source.Digest
	}
	return fmt.Sprintf("%s|%s|%s|%d", r.Primary.Source.Digest, r.Depth.Source.Digest, ev, r.Brightness)
}

// Result 合成结果。缓存命中时多个调用方共享同一张位图，只读
type Result struct {
	Image  *stdimage.RGBA
	Cached bool
}

// Stats 合成统计
type Stats struct {
	Calls      int64   `json:"calls"`
	CacheHits  int64   `json:"cache_hits"`
	Entries    int     `json:"entries"`
	P50Micros  int64   `json:"p50_us"`
	P95Micros  int64   `json:"p95_us"`
	MaxMicros  int64   `json:"max_us"`
	MeanMicros float64 `json:"mean_us"`
}

// Compositor 带内容缓存的合成服务
type Compositor struct {
	logger   *utils.TaggedLogger
	capacity int

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*stdimage.RGBA
	order   []string // 插入顺序，最早的先淘汰
	calls   int64
	hits    int64
	latency *hdrhistogram.Histogram
}

// NewCompositor 创建合成服务，capacity<=0 时不缓存
func NewCompositor(capacity int, logger *utils.Logger) *Compositor {
	return &Compositor{
		logger:   logger.WithTag("compose"),
		capacity: capacity,
		entries:  make(map[string]*stdimage.RGBA),
		latency:  hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3),
	}
}

// Compose 合成请求，相同内容的请求直接返回缓存结果
func (c *Compositor) Compose(req Request) (*Result, error) {
	if req.Primary == nil || req.Depth == nil {
		return nil, ErrMissingImage
	}
	key := req.Key()

	c.mu.Lock()
	c.calls++
	if img, ok := c.entries[key]; ok {
		c.hits++
		c.mu.Unlock()
		c.logger.Debug("合成缓存命中", map[string]interface{}{"key": key})
		return &Result{Image: img, Cached: true}, nil
	}
	c.mu.Unlock()

	ev := req.EVImage()
	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		start := time.Now()
		img, err := Compose(req.Primary.Image, req.Depth.Image, ev, req.Brightness)
		if err != nil {
			return nil, err
		}
		c.observe(time.Since(start))
		c.store(key, img)
		return img, nil
	})
	if err != nil {
		c.logger.Warn(fmt.Sprintf("合成失败: %v", err))
		return nil, err
	}

	img := v.(*stdimage.RGBA)
	c.logger.Info("合成完成", map[string]interface{}{
		"width":      img.Bounds().Dx(),
		"height":     img.Bounds().Dy(),
		"brightness": req.Brightness,
		"ev":         ev.Present(),
		"shared":     shared,
	})
	return &Result{Image: img, Cached: shared}, nil
}

func (c *Compositor) observe(d time.Duration) {
	us := d.Microseconds()
	if us < 1 {
		us = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.latency.RecordValue(us); err != nil {
		c.logger.Debug(fmt.Sprintf("记录合成耗时失败: %v", err))
	}
}

func (c *Compositor) store(key string, img *stdimage.RGBA) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = img
	c.order = append(c.order, key)
}

// Stats 返回统计信息
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{
		Calls:     c.calls,
		CacheHits: c.hits,
		Entries:   len(c.entries),
	}
	if c.latency.TotalCount() > 0 {
		stats.P50Micros = c.latency.ValueAtQuantile(50)
		stats.P95Micros = c.latency.ValueAtQuantile(95)
		stats.MaxMicros = c.latency.Max()
		stats.MeanMicros = c.latency.Mean()
	}
	return stats
}
