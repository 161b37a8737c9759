package fingerprint

import (
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/infra/imgx"
)

// GridSize 是 average hash 的采样网格边长：8×8 = 64 个采样，对应 64 bit。
const GridSize = 8

// ErrNoFingerprint 表示该文件没有感知指纹（非图片、解码失败或格式不支持）。
// 它与任何真实指纹（包括全 0）都不相等，聚类时该文件不参与比较。
var ErrNoFingerprint = errors.New("无感知指纹")

// NoFingerprintError 携带无指纹的原因（path + 底层错误），并满足 errors.Is(err, ErrNoFingerprint)。
type NoFingerprintError struct {
	Path string
	Err  error
}

func (e *NoFingerprintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s：%q", ErrNoFingerprint, e.Path)
	}
	return fmt.Sprintf("%s：%q：%v", ErrNoFingerprint, e.Path, e.Err)
}

func (e *NoFingerprintError) Is(target error) bool { return target == ErrNoFingerprint }

func (e *NoFingerprintError) Unwrap() error { return e.Err }

// Perceptual 计算记录的感知指纹。非图片记录直接返回 ErrNoFingerprint，不打开文件。
func Perceptual(fsys afero.Fs, rec domain.FileRecord) (domain.PerceptualFingerprint, error) {
	if !rec.IsImage() {
		return 0, &NoFingerprintError{Path: rec.Path, Err: fmt.Errorf("非图片类型 %s", rec.Kind)}
	}
	return PerceptualFile(fsys, rec.Path)
}

// PerceptualFile 解码 path 指向的图片并计算 average hash。
func PerceptualFile(fsys afero.Fs, path string) (domain.PerceptualFingerprint, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return 0, &NoFingerprintError{Path: path, Err: &ReadError{Path: path, Err: err}}
	}
	defer f.Close()

	grid, err := imgx.GrayGrid(f, GridSize, GridSize)
	if err != nil {
		return 0, &NoFingerprintError{Path: path, Err: err}
	}
	return FromGrid(grid)
}

// FromGrid 把 64 个灰度采样打包为指纹：采样 >= 均值 记为 1。
// 位序固定：行优先，第一个采样对应最高位（MSB-first）。
func FromGrid(grid []float64) (domain.PerceptualFingerprint, error) {
	const n = GridSize * GridSize
	if len(grid) != n {
		return 0, fmt.Errorf("采样数量无效：期望 %d，实际 %d", n, len(grid))
	}

	var sum float64
	for _, v := range grid {
		sum += v
	}
	mean := sum / n

	var fp uint64
	for i, v := range grid {
		if v >= mean {
			fp |= 1 << (n - 1 - i)
		}
	}
	return domain.PerceptualFingerprint(fp), nil
}
