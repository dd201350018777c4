package image

import (
	"bytes"
	"errors"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"gif", []byte("GIF89a"), "gif"},
		{"bmp", []byte("BM\x00\x00"), "bmp"},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), "webp"},
		{"riff but not webp", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), ""},
		{"tiff little endian", []byte{0x49, 0x49, 0x2A, 0x00}, "tiff"},
		{"text", []byte("hello world"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestSource(t *testing.T) {
	t.Run("same bytes same digest", func(t *testing.T) {
		a, err := SourceFromBytes("a.png", []byte("abc"))
		require.NoError(t, err)
		b, err := SourceFromBytes("b.png", []byte("abc"))
		require.NoError(t, err)
		assert.Equal(t, a.Digest, b.Digest)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := SourceFromBytes("a.png", nil)
		assert.True(t, errors.Is(err, ErrEmptyImage))
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flatiron.png")
		data := pngBytes(t, createTestImage(4, 4))
		require.NoError(t, os.WriteFile(path, data, 0644))

		src, err := SourceFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, "flatiron.png", src.Name)
		assert.Equal(t, path, src.Path)
		assert.Equal(t, data, src.Data)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := SourceFromFile(filepath.Join(t.TempDir(), "missing.png"))
		assert.Error(t, err)
	})
}

func TestOptional(t *testing.T) {
	none := None()
	_, ok := none.Get()
	assert.False(t, ok)
	assert.False(t, none.Present())

	// 零尺寸图片也是“已提供”
	empty := Some(stdimage.NewRGBA(stdimage.Rect(0, 0, 0, 0)))
	assert.True(t, empty.Present())

	assert.False(t, Some(nil).Present())
}

func TestToRGBA(t *testing.T) {
	src := createTestImage(6, 4)
	sub := src.SubImage(stdimage.Rect(2, 1, 6, 4))

	rgba := ToRGBA(sub)
	assert.Equal(t, stdimage.Rect(0, 0, 4, 3), rgba.Bounds())
	assert.Equal(t, src.RGBAAt(2, 1), rgba.RGBAAt(0, 0))

	assert.Same(t, src, ToRGBA(src))
}

func TestToRGBADropsAlpha(t *testing.T) {
	src := stdimage.NewNRGBA(stdimage.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{200, 50, 50, 128})
	src.SetNRGBA(1, 0, color.NRGBA{200, 50, 50, 0})

	rgba, format, err := DecodeBytes(pngBytes(t, src))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	for x := 0; x < 2; x++ {
		assert.Equal(t, color.RGBA{200, 50, 50, 255}, rgba.RGBAAt(x, 0), "x=%d", x)
	}
	assert.True(t, rgba.Opaque())

	// 半透明的RGBA输入不能原样返回
	translucent := stdimage.NewRGBA(stdimage.Rect(0, 0, 1, 1))
	translucent.SetRGBA(0, 0, color.RGBA{100, 25, 25, 128})
	out := ToRGBA(translucent)
	assert.NotSame(t, translucent, out)
	assert.Equal(t, uint8(255), out.RGBAAt(0, 0).A)
}

func TestJPEGBytes(t *testing.T) {
	data, err := JPEGBytes(createTestImage(8, 8), 0)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", DetectFormat(data))

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
}

func TestWriteJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jpg")
	require.NoError(t, WriteJPEG(path, createTestImage(5, 3), 90))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 5, cfg.Width)
	assert.Equal(t, 3, cfg.Height)
}

func TestDataURL(t *testing.T) {
	url := DataURL(MimeType("jpeg"), []byte{1, 2, 3})
	assert.True(t, strings.HasPrefix(url, "data:image/jpeg;base64,"))
	assert.Equal(t, "application/octet-stream", MimeType("xyz"))
}

func TestValidator(t *testing.T) {
	p := newTestProcessor(t)

	t.Run("valid png", func(t *testing.T) {
		result := p.Validate(pngBytes(t, createTestImage(10, 20)))
		require.True(t, result.IsValid, "%v", result.Error)
		assert.Equal(t, "png", result.Format)
		assert.Equal(t, 10, result.Width)
		assert.Equal(t, 20, result.Height)
	})

	t.Run("executable", func(t *testing.T) {
		result := p.Validate([]byte{0x7F, 0x45, 0x4C, 0x46, 0x02, 0x01, 0x01, 0x00})
		assert.False(t, result.IsValid)
		assert.True(t, errors.Is(result.Error, ErrUnsupportedFormat))
		assert.NotEmpty(t, result.SecurityRisk)
	})

	t.Run("not an image", func(t *testing.T) {
		result := p.Validate([]byte("plain text, not an image"))
		assert.False(t, result.IsValid)
		assert.True(t, errors.Is(result.Error, ErrUnsupportedFormat))
	})

	t.Run("truncated png", func(t *testing.T) {
		data := pngBytes(t, createTestImage(10, 10))
		result := p.Validate(data[:12])
		assert.False(t, result.IsValid)
	})

	t.Run("too wide", func(t *testing.T) {
		p.config.Security.MaxWidth = 5
		defer func() { p.config.Security.MaxWidth = 8192 }()
		result := p.Validate(pngBytes(t, createTestImage(10, 2)))
		assert.False(t, result.IsValid)
	})

	t.Run("empty", func(t *testing.T) {
		result := p.Validate(nil)
		assert.True(t, errors.Is(result.Error, ErrEmptyImage))
	})
}

func TestProcessorLoad(t *testing.T) {
	p := newTestProcessor(t)

	src, err := SourceFromBytes("primary.png", pngBytes(t, createTestImage(12, 7)))
	require.NoError(t, err)

	decoded, err := p.Load(src)
	require.NoError(t, err)
	assert.Equal(t, 12, decoded.Meta.Width)
	assert.Equal(t, 7, decoded.Meta.Height)
	assert.Equal(t, "png", decoded.Meta.Format)
	assert.Empty(t, decoded.Meta.CameraModel)
	assert.Equal(t, stdimage.Rect(0, 0, 12, 7), decoded.Image.Bounds())

	bad, err := SourceFromBytes("bad.png", []byte("definitely not an image"))
	require.NoError(t, err)
	_, err = p.Load(bad)
	assert.Error(t, err)

	metrics := p.GetMetrics()
	assert.Equal(t, int64(2), metrics.TotalProcessed)
	assert.Equal(t, int64(2), metrics.FromUpload)
	assert.Equal(t, int64(1), metrics.FailedValidations)
}
