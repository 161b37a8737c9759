package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 dejavu.toml。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

// FileName 是配置文件的固定文件名。
const FileName = "dejavu.toml"

const (
	DefaultMode        = "all"
	DefaultThreshold   = 5
	DefaultLinkage     = "any"
	DefaultMinSize     = int64(1024)
	DefaultConcurrency = 4
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "text"
	DefaultReportFmt   = "json"

	MaxThreshold   = 64
	MaxConcurrency = 32
)

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --apply=false 必须能覆盖 config.apply=true。
type CLIArgs struct {
	Path string

	Mode    string
	ModeSet bool

	Threshold    int
	ThresholdSet bool

	Linkage    string
	LinkageSet bool

	MinSize    int64
	MinSizeSet bool

	Concurrency    int
	ConcurrencySet bool

	// ImagesOnly/VideosOnly 互斥。
	ImagesOnly bool
	VideosOnly bool

	Apply    bool
	ApplySet bool

	Trash    bool
	TrashSet bool

	ReportPath   string
	ReportFormat string

	LogLevel  string
	LogFormat string
}

// FileConfig 对应 dejavu.toml 的解析结构。指针字段用于区分“未填写”与零值。
type FileConfig struct {
	Path        string       `toml:"path"`
	Mode        string       `toml:"mode"`
	Threshold   *int         `toml:"threshold"`
	Linkage     string       `toml:"linkage"`
	MinSize     *int64       `toml:"min_size"`
	Concurrency int          `toml:"concurrency"`
	Images      *bool        `toml:"images"`
	Videos      *bool        `toml:"videos"`
	Apply       *bool        `toml:"apply"`
	Trash       *bool        `toml:"trash"`
	ExcludeDirs []string     `toml:"exclude_dirs"`
	Report      ReportConfig `toml:"report"`
	Log         LogConfig    `toml:"log"`
}

type ReportConfig struct {
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Mode      string
	Threshold int
	Linkage   string
	MinSize   int64

	Concurrency int
	Images      bool
	Videos      bool
	ExcludeDirs []string

	Apply bool
	// Trash 为 true 时，apply 把冗余文件移入 <root>/.dejavu/trash/<run_id>/ 而不是直接删除。
	Trash bool

	// ReportPath 为空表示不写报告文件；相对路径以扫描根目录为基准。
	ReportPath   string
	ReportFormat string

	LogLevel  string
	LogFormat string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 path：尝试读取 <path>/dejavu.toml（可选）
// 2) CLI 未提供 path：必须读取 <cwd>/dejavu.toml（必选），且其中必须包含 path
//
// 覆盖优先级（固定）：CLI 显式指定 > 配置文件 > 内置默认。
// exclude_dirs 仅由配置文件控制。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if strings.TrimSpace(cli.Path) != "" {
		absPath := absCleanFrom(cwdAbs, cli.Path)
		cfgPath := filepath.Join(absPath, FileName)

		fc, _, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		return merge(absPath, cli, fc, cfgPath)
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, exists, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if strings.TrimSpace(fc.Path) == "" {
		return EffectiveConfig{}, &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	return merge(absCleanFrom(cwdAbs, fc.Path), cli, fc, cfgPath)
}

func merge(absPath string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	mode := pickString(cli.ModeSet, cli.Mode, fc.Mode, DefaultMode)
	switch mode {
	case "exact", "similar", "all":
	default:
		return EffectiveConfig{}, invalid("mode 只能是 exact/similar/all，实际是 %q", mode)
	}

	threshold := DefaultThreshold
	if cli.ThresholdSet {
		threshold = cli.Threshold
	} else if fc.Threshold != nil {
		threshold = *fc.Threshold
	}
	if threshold < 0 || threshold > MaxThreshold {
		return EffectiveConfig{}, invalid("threshold 必须在 [0, %d] 内，实际是 %d", MaxThreshold, threshold)
	}

	linkage := pickString(cli.LinkageSet, cli.Linkage, fc.Linkage, DefaultLinkage)
	if linkage != "any" && linkage != "seed" {
		return EffectiveConfig{}, invalid("linkage 只能是 any 或 seed，实际是 %q", linkage)
	}

	minSize := DefaultMinSize
	if cli.MinSizeSet {
		minSize = cli.MinSize
	} else if fc.MinSize != nil {
		minSize = *fc.MinSize
	}
	if minSize < 0 {
		return EffectiveConfig{}, invalid("min_size 不能为负数：%d", minSize)
	}

	// 配置文件中的 0 视为未填写；显式给出的值必须在 [1, 32] 内。
	concurrency := DefaultConcurrency
	if cli.ConcurrencySet {
		concurrency = cli.Concurrency
	} else if fc.Concurrency != 0 {
		concurrency = fc.Concurrency
	}
	if concurrency < 1 || concurrency > MaxConcurrency {
		return EffectiveConfig{}, invalid("concurrency 必须在 [1, %d] 内，实际是 %d", MaxConcurrency, concurrency)
	}

	images, videos := true, true
	if fc.Images != nil {
		images = *fc.Images
	}
	if fc.Videos != nil {
		videos = *fc.Videos
	}
	switch {
	case cli.ImagesOnly && cli.VideosOnly:
		return EffectiveConfig{}, invalid("--images-only 与 --videos-only 不能同时使用")
	case cli.ImagesOnly:
		images, videos = true, false
	case cli.VideosOnly:
		images, videos = false, true
	}
	if !images && !videos {
		return EffectiveConfig{}, invalid("images 与 videos 不能同时关闭")
	}

	apply := false
	if cli.ApplySet {
		apply = cli.Apply
	} else if fc.Apply != nil {
		apply = *fc.Apply
	}

	trash := false
	if cli.TrashSet {
		trash = cli.Trash
	} else if fc.Trash != nil {
		trash = *fc.Trash
	}

	reportPath := strings.TrimSpace(fc.Report.Path)
	if strings.TrimSpace(cli.ReportPath) != "" {
		reportPath = strings.TrimSpace(cli.ReportPath)
	}
	if reportPath != "" {
		reportPath = absCleanFrom(absPath, reportPath)
	}
	reportFormat := pickString(cli.ReportFormat != "", cli.ReportFormat, fc.Report.Format, DefaultReportFmt)
	switch reportFormat {
	case "json", "yaml", "html":
	default:
		return EffectiveConfig{}, invalid("report.format 只能是 json/yaml/html，实际是 %q", reportFormat)
	}

	logLevel := pickString(cli.LogLevel != "", cli.LogLevel, fc.Log.Level, DefaultLogLevel)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return EffectiveConfig{}, invalid("log.level 只能是 debug/info/warn/error，实际是 %q", logLevel)
	}
	logFormat := pickString(cli.LogFormat != "", cli.LogFormat, fc.Log.Format, DefaultLogFormat)
	if logFormat != "text" && logFormat != "json" {
		return EffectiveConfig{}, invalid("log.format 只能是 text 或 json，实际是 %q", logFormat)
	}

	return EffectiveConfig{
		Path:         absPath,
		Mode:         mode,
		Threshold:    threshold,
		Linkage:      linkage,
		MinSize:      minSize,
		Concurrency:  concurrency,
		Images:       images,
		Videos:       videos,
		ExcludeDirs:  append([]string(nil), fc.ExcludeDirs...),
		Apply:        apply,
		Trash:        trash,
		ReportPath:   reportPath,
		ReportFormat: reportFormat,
		LogLevel:     logLevel,
		LogFormat:    logFormat,
	}, nil
}

// pickString 按 CLI > 配置文件 > 默认值 取值；配置文件中的空白值视为未填写。
func pickString(cliSet bool, cliVal, fileVal, def string) string {
	if cliSet {
		return strings.ToLower(strings.TrimSpace(cliVal))
	}
	if v := strings.TrimSpace(fileVal); v != "" {
		return strings.ToLower(v)
	}
	return def
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
