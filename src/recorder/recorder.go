// Package recorder 把每次提交的输入和输出保存为按序号命名的测试用例目录。
//
// 序号由“扫描最大值再加一”得到，读取与创建之间没有加锁：多个进程同时记录时
// 可能算出相同的序号，其中一方创建目录失败。单用户本地使用时可以接受；
// ReserveRetries 大于0时改为冲突后递增重试。
package recorder

import (
	"context"
	"errors"
	"fmt"
	stdimage "image"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"depthdemo-server-go/src/core/compose"
	imgpkg "depthdemo-server-go/src/core/image"
	"depthdemo-server-go/src/core/utils"
)

// Options 记录选项
type Options struct {
	SkipMalformed  bool // 跳过不符合命名的条目，而不是中止
	ReserveRetries int  // 目录已存在时递增序号重试的次数
	JPEGQuality    int
}

// Entry 一次成功记录的摘要，交给索引
type Entry struct {
	SequenceNumber int
	Dir            string
	Params         compose.Parameters
	Brightness     int
	HasEV          bool
	OutputWidth    int
	OutputHeight   int
	PrimaryMeta    imgpkg.Metadata
	CreatedAt      time.Time
}

// Indexer 测试用例索引
type Indexer interface {
	Index(ctx context.Context, entry Entry) error
}

type namedImage struct {
	name string
	img  stdimage.Image
}

// Recorder 测试用例记录器
type Recorder struct {
	root    string
	opts    Options
	indexer Indexer
	logger  *utils.TaggedLogger
	now     func() time.Time
	next    func(root string, skipMalformed bool) (int, error)
}

// New 创建记录器
func New(root string, opts Options, logger *utils.Logger) *Recorder {
	return &Recorder{
		root:   root,
		opts:   opts,
		logger: logger.WithTag("recorder"),
		now:    time.Now,
		next:   NextSequence,
	}
}

// SetIndexer 设置索引，nil 表示不建立索引
func (r *Recorder) SetIndexer(ix Indexer) {
	r.indexer = ix
}

// Root 根目录
func (r *Recorder) Root() string {
	return r.root
}

// Record 创建新的测试用例目录并写入参数与图片，返回序号。
// 中途失败时已写入的文件保留在目录中
func (r *Recorder) Record(ctx context.Context, req compose.Request, output stdimage.Image) (int, error) {
	if req.Primary == nil || req.Depth == nil {
		return 0, compose.ErrMissingImage
	}
	if output == nil {
		return 0, errors.New("output image is required")
	}

	n, dir, err := r.reserve()
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(filepath.Join(dir, ParametersFile), []byte(FormatParameters(req.Params)), 0644); err != nil {
		return n, fmt.Errorf("写入参数文件失败: %w", err)
	}

	images := []namedImage{
		{PrimaryFile, req.Primary.Image},
		{DepthFile, req.Depth.Image},
	}
	if req.EV != nil {
		images = append(images, namedImage{EVFile, req.EV.Image})
	}
	images = append(images, namedImage{OutputFile, output})

	for _, item := range images {
		if err := imgpkg.WriteJPEG(filepath.Join(dir, item.name), item.img, r.opts.JPEGQuality); err != nil {
			return n, err
		}
	}

	r.logger.Info(fmt.Sprintf("测试用例已记录: %s", dir), map[string]interface{}{
		"sequence_number": n,
		"ev":              req.EV != nil,
		"brightness":      req.Brightness,
	})

	if r.indexer != nil {
		b := output.Bounds()
		entry := Entry{
			SequenceNumber: n,
			Dir:            dir,
			Params:         req.Params,
			Brightness:     req.Brightness,
			HasEV:          req.EV != nil,
			OutputWidth:    b.Dx(),
			OutputHeight:   b.Dy(),
			PrimaryMeta:    req.Primary.Meta,
			CreatedAt:      r.now(),
		}
		if err := r.indexer.Index(ctx, entry); err != nil {
			r.logger.Warn(fmt.Sprintf("写入测试用例索引失败: %v", err))
		}
	}

	return n, nil
}

// reserve 计算序号并创建目录
func (r *Recorder) reserve() (int, string, error) {
	n, err := r.next(r.root, r.opts.SkipMalformed)
	if err != nil {
		return 0, "", err
	}
	if err := os.MkdirAll(r.root, 0755); err != nil {
		return 0, "", fmt.Errorf("创建测试用例根目录失败: %w", err)
	}

	for attempt := 0; ; attempt++ {
		dir := filepath.Join(r.root, DirName(n))
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return n, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) || attempt >= r.opts.ReserveRetries {
			return 0, "", fmt.Errorf("创建测试用例目录失败: %w", err)
		}
		r.logger.Warn(fmt.Sprintf("测试用例目录 %s 已存在，尝试下一个序号", dir))
		n++
	}
}
