package scan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
)

// ReportDir 是 root 下保留给报告/锁文件的目录，永远不参与扫描。
const ReportDir = ".dejavu"

// DefaultMinSize 是默认的最小文件大小（字节）。
const DefaultMinSize = 1024

// ErrRootNotFound 表示扫描根目录不存在或不是目录。
var ErrRootNotFound = errors.New("扫描根目录不存在")

// Options 控制扫描范围。
type Options struct {
	// MinSize 以下（严格小于）的文件被忽略。
	MinSize int64
	// Images/Videos 为 false 时忽略对应类别；两者都为 false 时不会收集任何文件。
	Images bool
	Videos bool
	// ExcludeDirs 视为相对 root 的路径（若是绝对路径，则按绝对路径处理）。
	ExcludeDirs []string
	// OnFound 在每收集到一个文件后调用，参数为已收集数量。
	OnFound func(n int)
}

// ScanMedia 递归扫描 root 下的媒体文件。
//
// 规则：
// - 永久排除：<root>/.dejavu/
// - 只收集普通文件；符号链接不跟随
// - 扩展名大小写不敏感
// - 无法读取的子目录被跳过，不影响整次扫描
//
// 扫描阶段只做 stat，不读文件内容。输出按路径排序。
func ScanMedia(fsys afero.Fs, root string, opts Options) ([]domain.FileRecord, error) {
	root = filepath.Clean(root)
	st, err := fsys.Stat(root)
	if err != nil || !st.IsDir() {
		return nil, fmt.Errorf("%w：%s", ErrRootNotFound, root)
	}
	excluded := buildExcluded(root, opts.ExcludeDirs)

	files := make([]domain.FileRecord, 0, 128)
	err = afero.Walk(fsys, root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if isExcluded(path, excluded) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() < opts.MinSize {
			return nil
		}

		kind, ok := Classify(path)
		if !ok {
			return nil
		}
		if kind.Class == domain.ClassImage && !opts.Images || kind.Class == domain.ClassVideo && !opts.Videos {
			return nil
		}

		files = append(files, domain.FileRecord{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
			Kind:    kind,
		})
		if opts.OnFound != nil {
			opts.OnFound(len(files))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.SliceStable(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Classify 根据扩展名判断媒体类别与格式。
func Classify(path string) (domain.MediaKind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jpg", "jpeg":
		return domain.Image(domain.FormatJPEG), true
	case "png":
		return domain.Image(domain.FormatPNG), true
	case "gif":
		return domain.Image(domain.FormatGIF), true
	case "webp":
		return domain.Image(domain.FormatWebP), true
	case "bmp":
		return domain.Image(domain.FormatBMP), true
	case "tif", "tiff":
		return domain.Image(domain.FormatTIFF), true
	case "mp4":
		return domain.Video(domain.FormatMP4), true
	case "mov":
		return domain.Video(domain.FormatMOV), true
	case "avi":
		return domain.Video(domain.FormatAVI), true
	case "mkv":
		return domain.Video(domain.FormatMKV), true
	case "webm":
		return domain.Video(domain.FormatWebM), true
	default:
		return domain.MediaKind{}, false
	}
}

func buildExcluded(root string, excludeDirs []string) []string {
	excluded := make([]string, 0, 1+len(excludeDirs))
	excluded = append(excluded, filepath.Join(root, ReportDir))

	for _, x := range excludeDirs {
		x = strings.TrimSpace(x)
		if x == "" {
			continue
		}
		if filepath.IsAbs(x) {
			excluded = append(excluded, filepath.Clean(x))
			continue
		}
		excluded = append(excluded, filepath.Clean(filepath.Join(root, x)))
	}

	sort.Strings(excluded)
	return excluded
}

func isExcluded(path string, excluded []string) bool {
	path = filepath.Clean(path)
	for _, base := range excluded {
		if isUnder(path, base) {
			return true
		}
	}
	return false
}

func isUnder(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, base+string(filepath.Separator))
}
