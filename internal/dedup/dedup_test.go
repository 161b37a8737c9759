package dedup

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"path"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/dejavu/internal/domain"
)

var baseTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// memFiles 把 name->content 写入内存文件系统，并按给定顺序返回记录。
func memFiles(t *testing.T, fsys afero.Fs, order []string, contents map[string][]byte) []domain.FileRecord {
	t.Helper()
	out := make([]domain.FileRecord, 0, len(order))
	for i, p := range order {
		data := contents[p]
		require.NoError(t, afero.WriteFile(fsys, p, data, 0o644))
		out = append(out, domain.FileRecord{
			Path:    p,
			Size:    int64(len(data)),
			ModTime: baseTime.Add(time.Duration(i) * time.Second),
			Kind:    kindOf(p),
		})
	}
	return out
}

func kindOf(p string) domain.MediaKind {
	switch path.Ext(p) {
	case ".mp4":
		return domain.Video(domain.FormatMP4)
	case ".png":
		return domain.Image(domain.FormatPNG)
	default:
		return domain.Image(domain.FormatJPEG)
	}
}

func groupPaths(groups []domain.DuplicateGroup) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		ps := make([]string, 0, len(g.Files))
		for _, f := range g.Files {
			ps = append(ps, f.Path)
		}
		out = append(out, ps)
	}
	return out
}

func gradientImage(size int, horizontal bool) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := x
			if !horizontal {
				v = y
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v * 256 / size)})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}))
	return buf.Bytes()
}
