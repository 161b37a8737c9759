package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// MediaClass 是媒体大类：图片或视频。
type MediaClass string

const (
	ClassImage MediaClass = "image"
	ClassVideo MediaClass = "video"
)

// MediaFormat 是具体容器/编码格式（由扩展名推断，不读取文件内容）。
type MediaFormat string

const (
	FormatJPEG MediaFormat = "jpeg"
	FormatPNG  MediaFormat = "png"
	FormatGIF  MediaFormat = "gif"
	FormatWebP MediaFormat = "webp"
	FormatBMP  MediaFormat = "bmp"
	FormatTIFF MediaFormat = "tiff"

	FormatMP4  MediaFormat = "mp4"
	FormatMOV  MediaFormat = "mov"
	FormatAVI  MediaFormat = "avi"
	FormatMKV  MediaFormat = "mkv"
	FormatWebM MediaFormat = "webm"
)

// MediaKind = Image{format} | Video{format}。
type MediaKind struct {
	Class  MediaClass  `json:"class" yaml:"class"`
	Format MediaFormat `json:"format" yaml:"format"`
}

func Image(f MediaFormat) MediaKind { return MediaKind{Class: ClassImage, Format: f} }
func Video(f MediaFormat) MediaKind { return MediaKind{Class: ClassVideo, Format: f} }

func (k MediaKind) String() string { return string(k.Class) + "/" + string(k.Format) }

// Dimensions 是图片宽高（像素）。
type Dimensions struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// FileRecord 描述一次扫描得到的媒体文件（只做 stat，不读内容）。
//
// 不变量：
// - Path 必须是 clean + absolute
// - 由扫描器构造后不再修改；引擎只复制，不改写
type FileRecord struct {
	Path       string         `json:"path" yaml:"path"`
	Size       int64          `json:"size" yaml:"size"`
	ModTime    time.Time      `json:"mod_time" yaml:"mod_time"`
	Kind       MediaKind      `json:"kind" yaml:"kind"`
	Dimensions *Dimensions    `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Duration   *time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (f FileRecord) IsImage() bool { return f.Kind.Class == ClassImage }
func (f FileRecord) IsVideo() bool { return f.Kind.Class == ClassVideo }

// Filename 返回不含目录的文件名。
func (f FileRecord) Filename() string { return filepath.Base(f.Path) }

// Extension 返回小写扩展名（不含 '.'）；无扩展名时为空串。
func (f FileRecord) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Path)), ".")
}

func (f FileRecord) String() string { return fmt.Sprintf("%s (%d)", f.Filename(), f.Size) }

// SkippedFile 是“逐文件失败”的旁路记录：该文件被排除，但不影响整批结果。
type SkippedFile struct {
	Path   string `json:"path" yaml:"path"`
	Stage  string `json:"stage" yaml:"stage"`
	Code   string `json:"error_code" yaml:"error_code"`
	Reason string `json:"reason" yaml:"reason"`
}

const (
	StageExact      = "exact"
	StagePerceptual = "perceptual"
	StageDelete     = "delete"
)
