package dedup

import (
	"context"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/fingerprint"
)

var perceptualFunc = fingerprint.Perceptual

// Fingerprinted 是参与聚类的一条记录。OK=false 表示“无指纹”：
// 该记录不参与任何比较，既不会与别人相似，也不会被当作彼此相似。
type Fingerprinted struct {
	Record domain.FileRecord
	FP     domain.PerceptualFingerprint
	OK     bool
}

type perceptualMsg struct {
	idx int
	fp  domain.PerceptualFingerprint
	err error
}

// FindSimilar 计算图片记录的感知指纹，然后按输入顺序做贪心 single-link 聚类（见 Cluster）。
//
// 非图片记录不计算指纹、不计入进度；解码失败的图片进入 Result.Skipped。
func FindSimilar(ctx context.Context, fsys afero.Fs, records []domain.FileRecord, opts Options) (Result, error) {
	log := opts.logger()

	items := make([]Fingerprinted, len(records))
	images := make([]domain.FileRecord, 0, len(records))
	pos := make([]int, 0, len(records)) // images[k] 对应 items[pos[k]]
	for i, r := range records {
		items[i].Record = r
		if r.IsImage() {
			images = append(images, r)
			pos = append(pos, i)
		}
	}

	var skipped []domain.SkippedFile
	err := runPool(ctx, domain.StagePerceptual, images, opts,
		func(k int, rec domain.FileRecord) perceptualMsg {
			fp, err := perceptualFunc(fsys, rec)
			return perceptualMsg{idx: k, fp: fp, err: err}
		},
		func(m perceptualMsg) {
			it := &items[pos[m.idx]]
			if m.err != nil {
				log.Warn("跳过文件：感知指纹计算失败", "path", it.Record.Path, "error", m.err)
				skipped = append(skipped, domain.SkippedFile{Path: it.Record.Path, Stage: domain.StagePerceptual, Code: skipCode(m.err), Reason: m.err.Error()})
				return
			}
			it.FP, it.OK = m.fp, true
		},
	)
	if err != nil {
		return Result{}, err
	}

	sortSkipped(skipped)
	return Result{
		Groups:  Cluster(items, opts.Threshold, opts.firstID(), opts.linkage()),
		Skipped: skipped,
	}, nil
}

// Linkage 决定候选 j 与当前簇的比较方式。
type Linkage string

const (
	// LinkAny：j 与簇内任一已纳入成员相似即加入（single-link，默认）。
	LinkAny Linkage = "any"
	// LinkSeed：j 只与种子 i 比较；与种子不相似、只与其他成员相似的 j 不会被纳入。
	LinkSeed Linkage = "seed"
)

// Cluster 按下标顺序做一遍贪心聚类：
//
//	for i: 若 i 未分配且有指纹，则以 i 为种子建簇，
//	       按 j = i+1.. 顺序把未分配、有指纹且与簇“相连”的 j 纳入
//
// 相连的定义由 linkage 决定。两种方式都只扫描一遍、不回头：
// 已经跳过的 j 不会因为后来加入的成员而被重新考虑，因此结果依赖输入顺序，
// 但相同输入顺序总是得到相同的分组与编号。成员不足 2 的簇不输出。
// 分组的感知指纹取种子的指纹，编号从 firstID 开始按输出顺序递增；
// Distances 记录每个成员到推荐保留文件的距离（链式相连时可能超过 threshold）。
func Cluster(items []Fingerprinted, threshold, firstID int, linkage Linkage) []domain.DuplicateGroup {
	if firstID < 1 {
		firstID = 1
	}

	assigned := roaring.New()
	groups := make([]domain.DuplicateGroup, 0)

	for i := range items {
		if !items[i].OK || assigned.Contains(uint32(i)) {
			continue
		}
		assigned.Add(uint32(i))
		cluster := []int{i}

		for j := i + 1; j < len(items); j++ {
			if !items[j].OK || assigned.Contains(uint32(j)) {
				continue
			}
			if linked(items, cluster, j, threshold, linkage) {
				cluster = append(cluster, j)
				assigned.Add(uint32(j))
			}
		}

		if len(cluster) < 2 {
			continue
		}
		members := make([]domain.FileRecord, 0, len(cluster))
		fps := make([]domain.PerceptualFingerprint, 0, len(cluster))
		for _, k := range cluster {
			members = append(members, items[k].Record)
			fps = append(fps, items[k].FP)
		}
		g, err := domain.NewGroup(firstID+len(groups), domain.GroupSimilar, members)
		if err != nil {
			continue
		}
		groups = append(groups, g.WithPerceptual(items[i].FP).WithDistances(fps))
	}
	return groups
}

func linked(items []Fingerprinted, cluster []int, j, threshold int, linkage Linkage) bool {
	if linkage == LinkSeed {
		return domain.Similar(items[cluster[0]].FP, items[j].FP, threshold)
	}
	for _, k := range cluster {
		if domain.Similar(items[k].FP, items[j].FP, threshold) {
			return true
		}
	}
	return false
}
