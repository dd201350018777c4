// Package compose 将主图、深度图和可选的EV图纵向拼接，并整体调整亮度。
package compose

import (
	"errors"
	"fmt"
	stdimage "image"

	imgpkg "depthdemo-server-go/src/core/image"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

var (
	// ErrMissingImage 缺少主图或深度图
	ErrMissingImage = errors.New("primary and depth images are required")
	// ErrDimensionMismatch 参与拼接的图片宽度不一致
	ErrDimensionMismatch = errors.New("image dimension mismatch")
)

// Compose 纵向拼接后调整亮度，不修改输入图片
func Compose(primary, depth stdimage.Image, ev imgpkg.Optional, delta int) (*stdimage.RGBA, error) {
	stacked, err := Stack(primary, depth, ev)
	if err != nil {
		return nil, err
	}
	AdjustBrightness(stacked, delta)
	return stacked, nil
}

// Stack 按 主图、深度图、EV图 的固定顺序纵向拼接。
// 所有图片宽度必须相同，高度可以不同
func Stack(primary, depth stdimage.Image, ev imgpkg.Optional) (*stdimage.RGBA, error) {
	if primary == nil || depth == nil {
		return nil, ErrMissingImage
	}

	layers := []stdimage.Image{primary, depth}
	if img, ok := ev.Get(); ok {
		layers = append(layers, img)
	}

	width := primary.Bounds().Dx()
	height := 0
	for i, layer := range layers {
		b := layer.Bounds()
		if b.Dx() != width {
			return nil, fmt.Errorf("%w: layer %d is %dx%d, expected width %d",
				ErrDimensionMismatch, i, b.Dx(), b.Dy(), width)
		}
		height += b.Dy()
	}

	out := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	y := 0
	for _, layer := range layers {
		src := imgpkg.ToRGBA(layer)
		h := src.Bounds().Dy()
		draw.Draw(out, stdimage.Rect(0, y, width, y+h), src, stdimage.Point{}, draw.Src)
		y += h
	}
	return out, nil
}

// ShiftValue 对HSV的V通道做饱和加法：v > 255-delta 时取255，否则 v+delta，下限为0
func ShiftValue(v uint8, delta int) uint8 {
	if int(v) > 255-delta {
		return 255
	}
	n := int(v) + delta
	if n < 0 {
		return 0
	}
	return uint8(n)
}

// AdjustBrightness 在HSV空间原地调整亮度，色相和饱和度保持不变
func AdjustBrightness(img *stdimage.RGBA, delta int) {
	if delta == 0 {
		return
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+3 < len(row); i += 4 {
			r, g, bl := row[i], row[i+1], row[i+2]
			v := max(r, g, bl)
			nv := ShiftValue(v, delta)
			if nv == v {
				continue
			}
			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(bl) / 255}
			h, s, _ := c.Hsv()
			row[i], row[i+1], row[i+2] = colorful.Hsv(h, s, float64(nv)/255).RGB255()
		}
	}
}
