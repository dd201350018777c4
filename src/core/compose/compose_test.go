package compose

import (
	"bytes"
	"errors"
	stdimage "image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"

	imgpkg "depthdemo-server-go/src/core/image"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *stdimage.RGBA {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// valueAt 返回像素的V通道值
func valueAt(img *stdimage.RGBA, x, y int) uint8 {
	c := img.RGBAAt(x, y)
	return max(c.R, c.G, c.B)
}

var (
	white = color.RGBA{255, 255, 255, 255}
	black = color.RGBA{0, 0, 0, 255}
	red   = color.RGBA{200, 20, 20, 255}
	teal  = color.RGBA{30, 140, 120, 255}
)

func TestShiftValue(t *testing.T) {
	for d := 0; d <= 60; d++ {
		for v := 0; v <= 255; v++ {
			want := v + d
			if want > 255 {
				want = 255
			}
			require.Equal(t, uint8(want), ShiftValue(uint8(v), d), "v=%d d=%d", v, d)
		}
	}
}

func TestShiftValueNegative(t *testing.T) {
	tests := []struct {
		name  string
		v     uint8
		delta int
		want  uint8
	}{
		{"darkens mid value", 100, -30, 70},
		{"floors at zero", 10, -30, 0},
		{"ceiling is not clamped", 255, -5, 250},
		{"zero stays zero", 0, -1, 0},
		{"large positive", 1, 1000, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShiftValue(tt.v, tt.delta))
		})
	}
}

func TestAdjustBrightnessValueChannel(t *testing.T) {
	colors := []color.RGBA{white, black, red, teal, {250, 10, 200, 255}, {128, 128, 128, 255}}
	for _, d := range []int{0, 1, 10, 50} {
		for _, c := range colors {
			img := solid(2, 2, c)
			AdjustBrightness(img, d)

			v := int(max(c.R, c.G, c.B))
			want := min(v+d, 255)
			assert.Equal(t, uint8(want), valueAt(img, 1, 1), "color=%v d=%d", c, d)
		}
	}
}

func TestAdjustBrightnessKeepsHueAndSaturation(t *testing.T) {
	img := solid(1, 1, teal)
	AdjustBrightness(img, 40)

	before := colorful.Color{R: float64(teal.R) / 255, G: float64(teal.G) / 255, B: float64(teal.B) / 255}
	after := img.RGBAAt(0, 0)
	got := colorful.Color{R: float64(after.R) / 255, G: float64(after.G) / 255, B: float64(after.B) / 255}

	h0, s0, _ := before.Hsv()
	h1, s1, _ := got.Hsv()
	assert.InDelta(t, h0, h1, 1.5)
	assert.InDelta(t, s0, s1, 0.02)
}

func TestAdjustBrightnessZeroIsIdentity(t *testing.T) {
	img := solid(3, 3, red)
	img.SetRGBA(1, 1, teal)
	orig := append([]uint8(nil), img.Pix...)

	AdjustBrightness(img, 0)
	assert.Equal(t, orig, img.Pix)
}

func TestStackOrder(t *testing.T) {
	primary := solid(4, 2, red)
	depth := solid(4, 3, teal)
	ev := solid(4, 1, white)

	t.Run("without ev", func(t *testing.T) {
		out, err := Stack(primary, depth, imgpkg.None())
		require.NoError(t, err)
		assert.Equal(t, 4, out.Bounds().Dx())
		assert.Equal(t, 5, out.Bounds().Dy())
		assert.Equal(t, red, out.RGBAAt(0, 1))
		assert.Equal(t, teal, out.RGBAAt(3, 2))
		assert.Equal(t, teal, out.RGBAAt(0, 4))
	})

	t.Run("with ev", func(t *testing.T) {
		out, err := Stack(primary, depth, imgpkg.Some(ev))
		require.NoError(t, err)
		assert.Equal(t, 6, out.Bounds().Dy())
		assert.Equal(t, white, out.RGBAAt(2, 5))
	})

	t.Run("non-zero origin", func(t *testing.T) {
		sub := solid(6, 4, red).SubImage(stdimage.Rect(2, 1, 6, 3))
		out, err := Stack(sub, depth, imgpkg.None())
		require.NoError(t, err)
		assert.Equal(t, stdimage.Rect(0, 0, 4, 5), out.Bounds())
		assert.Equal(t, red, out.RGBAAt(0, 0))
	})
}

func TestStackErrors(t *testing.T) {
	tests := []struct {
		name    string
		primary stdimage.Image
		depth   stdimage.Image
		ev      imgpkg.Optional
		wantErr error
	}{
		{"missing primary", nil, solid(2, 2, red), imgpkg.None(), ErrMissingImage},
		{"missing depth", solid(2, 2, red), nil, imgpkg.None(), ErrMissingImage},
		{"depth width differs", solid(2, 2, red), solid(3, 2, red), imgpkg.None(), ErrDimensionMismatch},
		{"ev width differs", solid(2, 2, red), solid(2, 2, red), imgpkg.Some(solid(5, 2, red)), ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Stack(tt.primary, tt.depth, tt.ev)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestComposeWhiteOverBlack(t *testing.T) {
	primary := solid(100, 50, white)
	depth := solid(100, 50, black)

	out, err := Compose(primary, depth, imgpkg.None(), 10)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())

	for _, y := range []int{0, 25, 49} {
		assert.Equal(t, uint8(255), valueAt(out, 50, y))
	}
	for _, y := range []int{50, 75, 99} {
		assert.Equal(t, uint8(10), valueAt(out, 50, y))
		assert.Equal(t, color.RGBA{10, 10, 10, 255}, out.RGBAAt(0, y))
	}

	// 输入不被修改
	assert.Equal(t, black, depth.RGBAAt(0, 0))
}

func TestComposeNegativeDelta(t *testing.T) {
	out, err := Compose(solid(2, 1, white), solid(2, 1, color.RGBA{20, 20, 20, 255}), imgpkg.None(), -30)
	require.NoError(t, err)
	assert.Equal(t, uint8(225), valueAt(out, 0, 0))
	assert.Equal(t, uint8(0), valueAt(out, 0, 1))
}

func TestValueMatchesColorful(t *testing.T) {
	img := solid(1, 1, color.RGBA{12, 200, 90, 255})
	_, _, v := colorful.Color{R: 12.0 / 255, G: 200.0 / 255, B: 90.0 / 255}.Hsv()
	assert.Equal(t, uint8(math.Round(v*255)), valueAt(img, 0, 0))
}

func TestComposeTranslucentPrimary(t *testing.T) {
	primary := stdimage.NewNRGBA(stdimage.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			a := uint8(128)
			if x >= 8 {
				a = 0
			}
			primary.SetNRGBA(x, y, color.NRGBA{200, 50, 50, a})
		}
	}

	out, err := Compose(primary, solid(16, 16, black), imgpkg.None(), 10)
	require.NoError(t, err)
	for _, x := range []int{0, 15} {
		c := out.RGBAAt(x, 0)
		assert.Equal(t, uint8(210), c.R, "x=%d", x)
		assert.InDelta(t, 52, int(c.G), 1, "x=%d", x)
		assert.InDelta(t, 52, int(c.B), 1, "x=%d", x)
		assert.Equal(t, uint8(255), c.A, "x=%d", x)
	}

	data, err := imgpkg.JPEGBytes(out, 95)
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	r, g, b, _ := decoded.At(4, 4).RGBA()
	assert.InDelta(t, 210, int(r>>8), 12)
	assert.InDelta(t, 52, int(g>>8), 12)
	assert.InDelta(t, 52, int(b>>8), 12)
}
