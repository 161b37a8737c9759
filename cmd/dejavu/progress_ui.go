package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/John-Robertt/dejavu/internal/app/run"
	"github.com/John-Robertt/dejavu/internal/config"
	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/scan"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出。
//
// - 所有过程信息写到 stderr（或 fallback 到 stdout），不污染 stdout 的 JSON 输出契约
// - 事件驱动：run 层只发事件，CLI 决定如何展示
// - 指纹阶段使用进度条；OnProgress 可能乱序到达，只向前推进
type progressUI struct {
	w io.Writer

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	phase string
	done  int
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{w: w}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mode := "dry-run"
	modeHint := " (只报告，不删除)"
	if eff.Apply {
		mode = "apply"
		modeHint = ""
		if eff.Trash {
			modeHint = " (移入回收目录)"
		}
	}

	fmt.Fprintf(p.w, "[%s] dejavu scan (%s)\n", time.Now().Format("15:04:05"), mode)
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  path: %s\n", eff.Path)
	fmt.Fprintf(p.w, "  run: %s%s\n", mode, modeHint)
	fmt.Fprintf(p.w, "  mode: %s\n", eff.Mode)
	if eff.Mode != domain.ModeExact {
		fmt.Fprintf(p.w, "  threshold: %d (linkage=%s)\n", eff.Threshold, eff.Linkage)
	}
	fmt.Fprintf(p.w, "  media: %s\n", mediaKinds(eff.Images, eff.Videos))
	fmt.Fprintf(p.w, "  min_size: %s\n", humanize.IBytes(uint64(eff.MinSize)))
	fmt.Fprintf(p.w, "  concurrency: %d\n", eff.Concurrency)
	fmt.Fprintf(p.w, "  exclude_dirs: %s + 固定排除 %s/\n", formatStringListJSON(eff.ExcludeDirs), scan.ReportDir)
	if eff.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s (%s)\n", eff.ReportPath, eff.ReportFormat)
	}
	if eff.Apply && eff.Trash {
		fmt.Fprintf(p.w, "  trash: %s\n", filepath.Join(eff.Path, scan.ReportDir, "trash"))
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnProgress(phase string, done, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil || p.phase != phase {
		p.finishBarLocked()
		p.phase = phase
		p.done = 0
		// total <= 0（扫描阶段总数未知）时退化为 spinner。
		max := total
		if max <= 0 {
			max = -1
		}
		p.bar = progressbar.NewOptions(max,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription(phaseLabel(phase)),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}
	if done > p.done {
		p.done = done
		_ = p.bar.Set(done)
	}
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.finishBarLocked()

	switch name {
	case run.PhaseScan:
		fmt.Fprintf(p.w, "扫描: files=%d images=%d videos=%d (%s)\n",
			intField(fields, "files"), intField(fields, "images"), intField(fields, "videos"), formatShortDuration(dur))
	case run.PhaseExact:
		fmt.Fprintf(p.w, "完全一致: groups=%d skipped=%d (%s)\n",
			intField(fields, "groups"), intField(fields, "skipped"), formatShortDuration(dur))
	case run.PhasePerceptual:
		fmt.Fprintf(p.w, "视觉相似: groups=%d skipped=%d threshold=%d (%s)\n",
			intField(fields, "groups"), intField(fields, "skipped"), intField(fields, "threshold"), formatShortDuration(dur))
	case run.PhaseDelete:
		fmt.Fprintf(p.w, "删除: deleted=%d failed=%d review=%d (%s)\n",
			intField(fields, "deleted"), intField(fields, "failed"), intField(fields, "review"), formatShortDuration(dur))
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnDeleted(idx, total int, res domain.DeleteResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch res.Status {
	case domain.DeleteStatusFailed:
		fmt.Fprintf(p.w, "[%d/%d] %s %s: %s\n", idx, total, color.RedString("FAIL"), res.Path, truncate(res.Error, 120))
		return
	case domain.DeleteStatusPlanned:
		fmt.Fprintf(p.w, "[%d/%d] %s %s（需人工确认）\n", idx, total, color.YellowString("KEEP"), res.Path)
		return
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %s\n", idx, total, color.GreenString("DEL"), res.Path)
}

func (p *progressUI) finishBarLocked() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
	p.phase = ""
	p.done = 0
}

func phaseLabel(phase string) string {
	switch phase {
	case run.PhaseScan:
		return "已找到媒体文件"
	case run.PhaseExact:
		return "sha256"
	case run.PhasePerceptual:
		return "ahash "
	default:
		return phase
	}
}

func mediaKinds(images, videos bool) string {
	switch {
	case images && videos:
		return "images+videos"
	case images:
		return "images"
	default:
		return "videos"
	}
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
