package imgx

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // 注册 GIF 解码器
	_ "image/jpeg" // 注册 JPEG 解码器
	_ "image/png"  // 注册 PNG 解码器
	"io"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"  // 注册 BMP 解码器
	_ "golang.org/x/image/tiff" // 注册 TIFF 解码器
	_ "golang.org/x/image/webp" // 注册 WebP 解码器
)

// ErrEmptyImage 表示解码成功但图片尺寸为 0。
var ErrEmptyImage = errors.New("图片尺寸无效")

// GrayGrid 把图片解码并缩放到 w×h，返回行优先（row-major）的灰度采样值（0..255）。
//
// 约束：
// - 输入格式由已注册的解码器决定（jpeg/png/gif/bmp/tiff/webp）
// - 缩放使用双线性插值，结果对轻微重编码/缩放不敏感
// - 灰度按 Rec.601 加权：0.299R + 0.587G + 0.114B
func GrayGrid(r io.Reader, w, h uint) ([]float64, error) {
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("网格尺寸无效：%dx%d", w, h)
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	scaled := resize.Resize(w, h, img, resize.Bilinear)
	sb := scaled.Bounds()

	grid := make([]float64, 0, int(w*h))
	for y := 0; y < int(h); y++ {
		for x := 0; x < int(w); x++ {
			grid = append(grid, luminance(scaled, sb.Min.X+x, sb.Min.Y+y))
		}
	}
	return grid, nil
}

func luminance(img image.Image, x, y int) float64 {
	r, g, b, _ := img.At(x, y).RGBA()
	// RGBA() 返回 16 bit 通道值；除以 257 还原到 0..255。
	return (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 257
}
