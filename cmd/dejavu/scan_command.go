package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/dejavu/internal/app/run"
	"github.com/John-Robertt/dejavu/internal/config"
	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/logging"
	"github.com/John-Robertt/dejavu/internal/report"
)

type scanFlags struct {
	mode         string
	threshold    int
	linkage      string
	minSize      string
	concurrency  int
	imagesOnly   bool
	videosOnly   bool
	apply        bool
	trash        bool
	reportPath   string
	reportFormat string
	logLevel     string
	logFormat    string
}

func newScanCommand() *cobra.Command {
	var f scanFlags

	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "扫描目录中的重复媒体文件（默认 dry-run）",
		Long: `扫描 path（或 ./dejavu.toml 中的 path）下的图片与视频：
先按内容 sha256 找出完全一致的文件，再对剩余图片计算感知指纹找出视觉相似的文件。

stdout 不是终端时，stdout 只输出一个 JSON 报告；进度与摘要写到 stderr。`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.mode, "mode", config.DefaultMode, "检测方式：exact|similar|all")
	fl.IntVarP(&f.threshold, "threshold", "t", config.DefaultThreshold, "相似判定的最大汉明距离（0-64）")
	fl.StringVar(&f.linkage, "linkage", config.DefaultLinkage, "相似聚类方式：any（与簇内任一成员相似）|seed（只与种子比较）")
	fl.StringVar(&f.minSize, "min-size", humanize.IBytes(uint64(config.DefaultMinSize)), "忽略小于该大小的文件（如 1024、10KiB、2MB）")
	fl.IntVarP(&f.concurrency, "concurrency", "j", config.DefaultConcurrency, "指纹计算并发度（1-32）")
	fl.BoolVar(&f.imagesOnly, "images-only", false, "只扫描图片")
	fl.BoolVar(&f.videosOnly, "videos-only", false, "只扫描视频")
	fl.BoolVar(&f.apply, "apply", false, "删除每个分组中除推荐保留文件以外的文件（默认 dry-run）")
	fl.BoolVar(&f.trash, "trash", false, "apply 时移入 <path>/.dejavu/trash/<run_id>/ 而不是直接删除")
	fl.StringVarP(&f.reportPath, "report", "o", "", "另外把报告写入该文件（相对 path）")
	fl.StringVar(&f.reportFormat, "report-format", "", "报告文件格式：json|yaml|html（默认 json）")
	fl.StringVar(&f.logLevel, "log-level", "", "日志级别：debug|info|warn|error")
	fl.StringVar(&f.logFormat, "log-format", "", "日志格式：text|json")
	return cmd
}

func runScan(cmd *cobra.Command, args []string, f scanFlags) error {
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	fl := cmd.Flags()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("读取当前目录失败：%w", err)
	}

	cli := config.CLIArgs{
		Mode:           f.mode,
		ModeSet:        fl.Changed("mode"),
		Threshold:      f.threshold,
		ThresholdSet:   fl.Changed("threshold"),
		Linkage:        f.linkage,
		LinkageSet:     fl.Changed("linkage"),
		Concurrency:    f.concurrency,
		ConcurrencySet: fl.Changed("concurrency"),
		ImagesOnly:     f.imagesOnly,
		VideosOnly:     f.videosOnly,
		Apply:          f.apply,
		ApplySet:       fl.Changed("apply"),
		Trash:          f.trash,
		TrashSet:       fl.Changed("trash"),
		ReportPath:     f.reportPath,
		ReportFormat:   f.reportFormat,
		LogLevel:       f.logLevel,
		LogFormat:      f.logFormat,
	}
	if len(args) == 1 {
		cli.Path = args[0]
	}

	if fl.Changed("min-size") {
		n, err := humanize.ParseBytes(f.minSize)
		if err != nil {
			rr := reportForError(cwd, domain.ErrCodeConfigInvalid, fmt.Errorf("--min-size 无效：%w", err))
			return emit(stdout, stderr, rr)
		}
		cli.MinSize, cli.MinSizeSet = int64(n), true
	}

	eff, err := config.LoadEffective(cwd, cli)
	if err != nil {
		return emit(stdout, stderr, reportForError(cwd, config.Code(err), err))
	}

	log, err := logging.New(logging.Options{Level: eff.LogLevel, Format: eff.LogFormat, Writer: stderr})
	if err != nil {
		return emit(stdout, stderr, reportForError(eff.Path, domain.ErrCodeConfigInvalid, err))
	}

	var obs run.Observer
	if w, ok := progressWriter(stdout, stderr); ok {
		obs = newProgressUI(w)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Logger: log}, obs)

	if eff.ReportPath != "" {
		if err := report.Write(eff.ReportPath, eff.ReportFormat, rr); err != nil {
			log.Error("写入报告失败", "path", eff.ReportPath, "error", err)
			if rr.ErrorCode == "" {
				rr.ErrorCode = domain.ErrCodeReportFailed
				rr.ErrorMsg = err.Error()
			}
		} else {
			log.Info("报告已写入", "path", eff.ReportPath, "format", eff.ReportFormat)
		}
	}

	return emit(stdout, stderr, rr)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// emit 输出最终结果，并把失败映射为退出码 1。
//
// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（摘要走 stderr）。
// stdout 是 TTY：输出分组表格与彩色摘要。
func emit(stdout, stderr io.Writer, rr domain.RunReport) error {
	if isTerminal(stdout) {
		if len(rr.Groups) > 0 {
			fmt.Fprintln(stdout, renderGroups(rr.Groups))
		}
		fmt.Fprintln(stdout, summaryLine(rr, true))
		for _, line := range problemLines(rr) {
			fmt.Fprintln(stderr, line)
		}
	} else {
		b, err := report.EncodeJSON(rr)
		if err != nil {
			return err
		}
		if _, err := stdout.Write(b); err != nil {
			return err
		}
		fmt.Fprintln(stderr, summaryLine(rr, false))
	}

	if rr.ErrorCode != "" || rr.Summary.DeleteFailed > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func reportForError(path, code string, err error) domain.RunReport {
	now := time.Now().UTC()
	abs, _ := filepath.Abs(path)
	rr := domain.RunReport{
		Path:       abs,
		DryRun:     true,
		StartedAt:  now,
		FinishedAt: now,
		ErrorCode:  code,
		ErrorMsg:   err.Error(),
	}
	rr.Finalize()
	return rr
}
