package dedup

import (
	"context"
	"errors"
	"sort"

	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/fingerprint"
)

// 通过可替换的函数指针，让测试能稳定模拟读取失败/worker panic。
var exactFunc = fingerprint.Exact

type exactMsg struct {
	idx int
	fp  domain.ExactFingerprint
	err error
}

// FindExact 计算每条记录的 exact 指纹，并把摘要相同的记录聚合为分组。
//
// - 分组成员 = 内容完全一致的文件；成员内部保持输入顺序
// - 单成员的桶被丢弃；读取失败的文件进入 Result.Skipped，不影响整批
// - 分组按首个成员路径排序后编号，因此相同输入在任意 worker 数下得到相同编号
func FindExact(ctx context.Context, fsys afero.Fs, records []domain.FileRecord, opts Options) (Result, error) {
	log := opts.logger()

	// buckets/skipped 只由 sink goroutine 读写。
	buckets := make(map[domain.ExactFingerprint][]int, len(records))
	var skipped []domain.SkippedFile

	err := runPool(ctx, domain.StageExact, records, opts,
		func(i int, rec domain.FileRecord) exactMsg {
			fp, err := exactFunc(fsys, rec.Path)
			return exactMsg{idx: i, fp: fp, err: err}
		},
		func(m exactMsg) {
			if m.err != nil {
				path := records[m.idx].Path
				log.Warn("跳过文件：exact 指纹计算失败", "path", path, "error", m.err)
				skipped = append(skipped, domain.SkippedFile{Path: path, Stage: domain.StageExact, Code: skipCode(m.err), Reason: m.err.Error()})
				return
			}
			buckets[m.fp] = append(buckets[m.fp], m.idx)
		},
	)
	if err != nil {
		return Result{}, err
	}

	type bucket struct {
		fp  domain.ExactFingerprint
		idx []int
	}
	kept := make([]bucket, 0, len(buckets))
	for fp, idx := range buckets {
		if len(idx) < 2 {
			continue
		}
		// 到达顺序取决于调度；恢复为输入顺序。
		sort.Ints(idx)
		kept = append(kept, bucket{fp: fp, idx: idx})
	}
	sort.Slice(kept, func(a, b int) bool {
		pa, pb := records[kept[a].idx[0]].Path, records[kept[b].idx[0]].Path
		if pa != pb {
			return pa < pb
		}
		return kept[a].idx[0] < kept[b].idx[0]
	})

	groups := make([]domain.DuplicateGroup, 0, len(kept))
	id := opts.firstID()
	for _, b := range kept {
		files := make([]domain.FileRecord, 0, len(b.idx))
		for _, i := range b.idx {
			files = append(files, records[i])
		}
		g, err := domain.NewGroup(id, domain.GroupExact, files)
		if err != nil {
			// len(idx) >= 2 已保证；走到这里说明不变量被破坏。
			return Result{}, err
		}
		groups = append(groups, g.WithExact(b.fp))
		id++
	}

	sortSkipped(skipped)
	return Result{Groups: groups, Skipped: skipped}, nil
}

// skipCode 把逐文件错误映射为报告中的 error_code。
func skipCode(err error) string {
	var re *fingerprint.ReadError
	if errors.As(err, &re) {
		return domain.ErrCodeReadFailed
	}
	if errors.Is(err, fingerprint.ErrNoFingerprint) {
		return domain.ErrCodeDecodeFailed
	}
	return domain.ErrCodeReadFailed
}

func sortSkipped(s []domain.SkippedFile) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Path < s[j].Path })
}

// Ungrouped 返回不属于任何分组的记录（保持输入顺序），用于把第一阶段的剩余文件交给第二阶段。
func Ungrouped(records []domain.FileRecord, groups []domain.DuplicateGroup) []domain.FileRecord {
	grouped := make(map[string]struct{}, len(records))
	for _, g := range groups {
		for _, f := range g.Files {
			grouped[f.Path] = struct{}{}
		}
	}
	out := make([]domain.FileRecord, 0, len(records))
	for _, r := range records {
		if _, ok := grouped[r.Path]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}
