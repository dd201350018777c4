package image

import (
	"bytes"
	stdimage "image"
	"image/color"
	"image/png"
	"testing"

	"depthdemo-server-go/src/configs"
	"depthdemo-server-go/src/core/utils"

	"github.com/stretchr/testify/require"
)

// createTestImage 生成渐变测试图
func createTestImage(width, height int) *stdimage.RGBA {
	img := stdimage.NewRGBA(stdimage.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / width), uint8(y * 255 / height), 128, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img stdimage.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestProcessor(t *testing.T) *ImageProcessor {
	t.Helper()
	logger, err := utils.NewTestLogger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	cfg := &configs.Config{}
	cfg.SetDefaults()
	cfg.Images.Security.EnableDeepScan = true
	return NewImageProcessor(&cfg.Images, logger)
}
