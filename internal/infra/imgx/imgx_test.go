package imgx

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrayGrid_LeftDarkRightBright(t *testing.T) {
	// 构造一个“左黑右白”的图片，验证网格的行优先布局与灰度取值。
	const (
		w = 200
		h = 100
	)
	src := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				src.Set(x, y, color.RGBA{0, 0, 0, 255})
			} else {
				src.Set(x, y, color.RGBA{255, 255, 255, 255})
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	grid, err := GrayGrid(&buf, 8, 8)
	require.NoError(t, err)
	require.Len(t, grid, 64)
	for row := 0; row < 8; row++ {
		assert.LessOrEqual(t, grid[row*8], 30.0, "第 %d 行左侧", row)
		assert.GreaterOrEqual(t, grid[row*8+7], 225.0, "第 %d 行右侧", row)
	}
}

func TestGrayGrid_JPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range src.Pix {
		src.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, src, &jpeg.Options{Quality: 95}))

	grid, err := GrayGrid(&buf, 8, 8)
	require.NoError(t, err)
	for i, v := range grid {
		assert.InDelta(t, 128, v, 8, "采样 %d", i)
	}
}

func TestGrayGrid_NotAnImage(t *testing.T) {
	_, err := GrayGrid(strings.NewReader("definitely not an image"), 8, 8)
	assert.Error(t, err)
}

func TestGrayGrid_ZeroGrid(t *testing.T) {
	_, err := GrayGrid(strings.NewReader(""), 0, 8)
	assert.Error(t, err)
}
