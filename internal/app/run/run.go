package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/config"
	"github.com/John-Robertt/dejavu/internal/dedup"
	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/infra/fsx"
	"github.com/John-Robertt/dejavu/internal/scan"
)

// Deps 是一次运行的外部依赖。零值可用：真实文件系统、slog.Default()、uuid 生成 run_id。
type Deps struct {
	Fs     afero.Fs
	Logger *slog.Logger
	// NewRunID 便于测试固定 run_id。
	NewRunID func() string
	// LockRoot 为 nil 时使用 fsx.LockRoot；内存文件系统的测试可替换为空操作。
	LockRoot func(root string) (unlock func() error, err error)
}

func (d Deps) withDefaults() Deps {
	if d.Fs == nil {
		d.Fs = afero.NewOsFs()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.NewRunID == nil {
		d.NewRunID = uuid.NewString
	}
	if d.LockRoot == nil {
		d.LockRoot = func(root string) (func() error, error) {
			l, err := fsx.LockRoot(root)
			if err != nil {
				return nil, err
			}
			return l.Unlock, nil
		}
	}
	return d
}

// Execute 执行一次扫描（dry-run/apply），并返回对外稳定的 RunReport。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
//
// 流程：scan → exact（mode=exact|all）→ perceptual（mode=similar|all，只处理未进入 exact 分组的文件）
// → delete（apply）或生成删除计划（dry-run）。
//
// 逐文件失败进入 report.Skipped / report.Deletes；只有扫描失败、worker panic、ctx 取消、
// 根目录加锁失败会让整批失败（report.ErrorCode 非空）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	deps = deps.withDefaults()
	if obs == nil {
		obs = nopObserver{}
	}
	log := deps.Logger

	rr := domain.RunReport{
		RunID:     deps.NewRunID(),
		Path:      eff.Path,
		Mode:      eff.Mode,
		DryRun:    !eff.Apply,
		StartedAt: time.Now().UTC(),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}
	fail := func(code string, err error) domain.RunReport {
		rr.ErrorCode = code
		rr.ErrorMsg = err.Error()
		log.Error("运行失败", "error_code", code, "error", err)
		return finish()
	}

	obs.OnStart(eff)
	log.Info("开始扫描", "run_id", rr.RunID, "path", eff.Path, "mode", eff.Mode, "apply", eff.Apply)

	scanStarted := time.Now()
	files, err := scan.ScanMedia(deps.Fs, eff.Path, scan.Options{
		MinSize:     eff.MinSize,
		Images:      eff.Images,
		Videos:      eff.Videos,
		ExcludeDirs: eff.ExcludeDirs,
		OnFound:     func(n int) { obs.OnProgress(PhaseScan, n, 0) },
	})
	if err != nil {
		return fail(domain.ErrCodeScanFailed, fmt.Errorf("扫描失败：%w", err))
	}
	rr.Summary.Files = len(files)

	var images int
	for _, f := range files {
		if f.IsImage() {
			images++
		}
	}
	obs.OnPhaseDone(PhaseScan, map[string]any{
		"files":  len(files),
		"images": images,
		"videos": len(files) - images,
	}, time.Since(scanStarted))

	opts := dedup.Options{
		Workers:   eff.Concurrency,
		Threshold: eff.Threshold,
		Linkage:   dedup.Linkage(eff.Linkage),
		Logger:    log,
	}

	rest := files
	if eff.Mode == domain.ModeExact || eff.Mode == domain.ModeAll {
		started := time.Now()
		o := opts
		o.Progress = func(done, total int) { obs.OnProgress(PhaseExact, done, total) }

		res, err := dedup.FindExact(ctx, deps.Fs, files, o)
		if err != nil {
			return fail(stageErrCode(err), err)
		}
		rr.Groups = append(rr.Groups, res.Groups...)
		rr.Skipped = append(rr.Skipped, res.Skipped...)
		rest = withoutSkipped(dedup.Ungrouped(files, res.Groups), res.Skipped)

		obs.OnPhaseDone(PhaseExact, map[string]any{
			"groups":  len(res.Groups),
			"skipped": len(res.Skipped),
		}, time.Since(started))
	}

	if eff.Mode == domain.ModeSimilar || eff.Mode == domain.ModeAll {
		started := time.Now()
		o := opts
		o.FirstID = len(rr.Groups) + 1
		o.Progress = func(done, total int) { obs.OnProgress(PhasePerceptual, done, total) }

		res, err := dedup.FindSimilar(ctx, deps.Fs, rest, o)
		if err != nil {
			return fail(stageErrCode(err), err)
		}
		rr.Groups = append(rr.Groups, res.Groups...)
		rr.Skipped = append(rr.Skipped, res.Skipped...)

		obs.OnPhaseDone(PhasePerceptual, map[string]any{
			"groups":    len(res.Groups),
			"skipped":   len(res.Skipped),
			"threshold": eff.Threshold,
		}, time.Since(started))
	}

	if !eff.Apply {
		rr.Deletes = fsx.PlanRedundant(rr.Groups)
		return finish()
	}

	started := time.Now()
	unlock, err := deps.LockRoot(eff.Path)
	if err != nil {
		return fail(domain.ErrCodeLocked, err)
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn("释放根目录锁失败", "error", err)
		}
	}()

	d := &fsx.Deleter{Fs: deps.Fs, Root: eff.Path, Threshold: eff.Threshold}
	if eff.Trash {
		d.TrashDir = filepath.Join(eff.Path, scan.ReportDir, "trash", rr.RunID)
	}

	total := 0
	for _, g := range rr.Groups {
		total += len(g.Files) - 1
	}
	idx := 0
	rr.Deletes = d.DeleteRedundant(rr.Groups, func(res domain.DeleteResult) {
		idx++
		switch res.Status {
		case domain.DeleteStatusFailed:
			log.Warn("删除失败", "path", res.Path, "error_code", res.Code, "error", res.Error)
		case domain.DeleteStatusPlanned:
			log.Info("与推荐保留文件差异超过阈值，需人工确认", "path", res.Path, "group", res.Ref.Group)
		default:
			log.Debug("已删除", "path", res.Path)
		}
		obs.OnDeleted(idx, total, res)
	})

	counts := map[string]int{}
	for _, r := range rr.Deletes {
		counts[r.Status]++
	}
	obs.OnPhaseDone(PhaseDelete, map[string]any{
		"deleted": counts[domain.DeleteStatusDeleted],
		"failed":  counts[domain.DeleteStatusFailed],
		"review":  counts[domain.DeleteStatusPlanned],
		"trash":   d.TrashDir != "",
	}, time.Since(started))

	return finish()
}

// stageErrCode 把指纹阶段的批级错误映射为 error_code。
func stageErrCode(err error) string {
	var fe *dedup.FatalError
	switch {
	case errors.As(err, &fe):
		return domain.ErrCodeFatal
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrCodeCanceled
	default:
		return domain.ErrCodeFatal
	}
}

// withoutSkipped 去掉 exact 阶段已无法读取的文件，避免同一文件在 perceptual 阶段再被跳过一次。
func withoutSkipped(records []domain.FileRecord, skipped []domain.SkippedFile) []domain.FileRecord {
	if len(skipped) == 0 {
		return records
	}
	bad := make(map[string]struct{}, len(skipped))
	for _, s := range skipped {
		bad[s.Path] = struct{}{}
	}
	out := make([]domain.FileRecord, 0, len(records))
	for _, r := range records {
		if _, ok := bad[r.Path]; !ok {
			out = append(out, r)
		}
	}
	return out
}
