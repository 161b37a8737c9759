package fingerprint

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
)

// ChunkSize 是流式读取的固定块大小；与文件大小无关，保证任意大文件的内存占用恒定。
const ChunkSize = 64 * 1024

// ReadError 表示计算指纹时打开/读取文件失败。
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("读取文件失败：%q：%v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Exact 以固定大小的块流式读取 path，返回 SHA-256 摘要。
func Exact(fsys afero.Fs, path string) (domain.ExactFingerprint, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return domain.ExactFingerprint{}, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	return ExactReader(f, path)
}

// ExactReader 与 Exact 相同，但直接消费 r；path 只用于错误标注。
func ExactReader(r io.Reader, path string) (domain.ExactFingerprint, error) {
	h := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(h, onlyReader{r}, buf); err != nil {
		return domain.ExactFingerprint{}, &ReadError{Path: path, Err: err}
	}

	var fp domain.ExactFingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}

// onlyReader 屏蔽 WriterTo/ReaderFrom，确保 io.CopyBuffer 真正使用固定大小的 buf。
type onlyReader struct{ io.Reader }
