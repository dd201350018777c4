package image

import (
	"bytes"
	"encoding/base64"
	"fmt"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"io"
	"os"

	"golang.org/x/image/draw"
)

// DefaultJPEGQuality 与常见图像库的默认保存质量一致
const DefaultJPEGQuality = 75

// ToRGBA 转换为原点在(0,0)的不透明RGBA位图，已是不透明RGBA时直接返回。
// 透明通道被丢弃，像素保留未预乘的原始颜色
func ToRGBA(img stdimage.Image) *stdimage.RGBA {
	if rgba, ok := img.(*stdimage.RGBA); ok && rgba.Rect.Min == (stdimage.Point{}) && rgba.Opaque() {
		return rgba
	}
	b := img.Bounds()
	dst := stdimage.NewRGBA(stdimage.Rect(0, 0, b.Dx(), b.Dy()))
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			dst.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
		}
	}
	return dst
}

// DecodeBytes 解码图片字节为RGBA位图
func DecodeBytes(data []byte) (*stdimage.RGBA, string, error) {
	if len(data) == 0 {
		return nil, "", ErrEmptyImage
	}
	img, format, err := stdimage.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return ToRGBA(img), format, nil
}

// EncodeJPEG 以JPEG编码写出，quality<=0 使用默认质量
func EncodeJPEG(w io.Writer, img stdimage.Image, quality int) error {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// JPEGBytes 编码为JPEG字节
func JPEGBytes(img stdimage.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, img, quality); err != nil {
		return nil, fmt.Errorf("JPEG编码失败: %v", err)
	}
	return buf.Bytes(), nil
}

// WriteJPEG 编码为JPEG并写入文件，文件已存在时覆盖
func WriteJPEG(path string, img stdimage.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图片文件失败: %w", err)
	}
	if err := EncodeJPEG(f, img, quality); err != nil {
		f.Close()
		return fmt.Errorf("写入图片 %s 失败: %v", path, err)
	}
	return f.Close()
}

// DataURL 生成可嵌入页面的 data URL
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// MimeType 图片格式对应的 MIME 类型
func MimeType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png", "gif", "bmp", "webp", "tiff":
		return "image/" + format
	default:
		return "application/octet-stream"
	}
}
