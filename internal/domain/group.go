package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// GroupKind 标识分组来源。
type GroupKind string

const (
	GroupExact   GroupKind = "exact"
	GroupSimilar GroupKind = "similar"
)

// ErrGroupTooSmall 表示试图用不足 2 个成员构造分组。
var ErrGroupTooSmall = errors.New("duplicate group 至少需要 2 个文件")

// DuplicateGroup 是一组被判定为等价（完全一致或视觉相似）的文件。
//
// 不变量：
// - len(Files) >= 2
// - Original 是 Files 的合法下标
// - WastedSpace == TotalSize - Files[Original].Size
//
// 只通过 NewGroup 构造；构造后只读。
type DuplicateGroup struct {
	ID    int          `json:"id" yaml:"id"`
	Kind  GroupKind    `json:"kind" yaml:"kind"`
	Files []FileRecord `json:"files" yaml:"files"`

	Exact      *ExactFingerprint      `json:"exact,omitempty" yaml:"exact,omitempty"`
	Perceptual *PerceptualFingerprint `json:"perceptual,omitempty" yaml:"perceptual,omitempty"`

	// Distances[i] 是 Files[i] 与推荐保留文件的感知指纹汉明距离；只有 similar 分组填写。
	Distances []int `json:"distances,omitempty" yaml:"distances,omitempty"`

	Original    int   `json:"original" yaml:"original"`
	TotalSize   int64 `json:"total_size" yaml:"total_size"`
	WastedSpace int64 `json:"wasted_space" yaml:"wasted_space"`
}

// NewGroup 计算 TotalSize / Original / WastedSpace。files 会被复制，调用方后续修改不影响分组。
func NewGroup(id int, kind GroupKind, files []FileRecord) (DuplicateGroup, error) {
	if len(files) < 2 {
		return DuplicateGroup{}, ErrGroupTooSmall
	}
	g := DuplicateGroup{
		ID:    id,
		Kind:  kind,
		Files: append([]FileRecord(nil), files...),
	}
	for _, f := range g.Files {
		g.TotalSize += f.Size
	}
	g.Original = SelectOriginal(g.Files)
	g.WastedSpace = wastedSpace(g.Files, g.Original, g.TotalSize)
	return g, nil
}

// WithExact / WithPerceptual 附加产生该分组的指纹（一个分组可能同时带两种）。
func (g DuplicateGroup) WithExact(fp ExactFingerprint) DuplicateGroup {
	g.Exact = &fp
	return g
}

func (g DuplicateGroup) WithPerceptual(fp PerceptualFingerprint) DuplicateGroup {
	g.Perceptual = &fp
	return g
}

// WithDistances 按成员指纹计算 Distances。fps 必须与 Files 一一对应，否则原样返回。
func (g DuplicateGroup) WithDistances(fps []PerceptualFingerprint) DuplicateGroup {
	if len(fps) != len(g.Files) {
		return g
	}
	kept := fps[g.Original]
	g.Distances = make([]int, len(fps))
	for i, fp := range fps {
		g.Distances[i] = HammingDistance(kept, fp)
	}
	return g
}

// AutoDeletable 判断 Files[i] 能否在批量清理中直接删除。
//
//   - exact 分组：除推荐保留文件外全部可以
//   - similar 分组：只有与推荐保留文件本身的距离 <= threshold 的成员可以；
//     经由其他成员间接相连的文件需要人工确认
func (g DuplicateGroup) AutoDeletable(i, threshold int) bool {
	if i < 0 || i >= len(g.Files) || i == g.Original {
		return false
	}
	if g.Kind == GroupExact {
		return true
	}
	if len(g.Distances) != len(g.Files) {
		return false
	}
	return g.Distances[i] <= threshold
}

// OriginalFile 返回推荐保留的文件。
func (g DuplicateGroup) OriginalFile() FileRecord { return g.Files[g.Original] }

// FileCount 返回成员数量。
func (g DuplicateGroup) FileCount() int { return len(g.Files) }

// SelectOriginal 选出推荐保留的下标：按 (ModTime 升序, 路径字符串长度升序, 路径段数升序) 取最小；
// 三项全相同时保留先出现者。空切片返回 0（NewGroup 保证不会发生）。
func SelectOriginal(files []FileRecord) int {
	best := 0
	for i := 1; i < len(files); i++ {
		if originalLess(files[i], files[best]) {
			best = i
		}
	}
	return best
}

func originalLess(a, b FileRecord) bool {
	if !a.ModTime.Equal(b.ModTime) {
		return a.ModTime.Before(b.ModTime)
	}
	if len(a.Path) != len(b.Path) {
		return len(a.Path) < len(b.Path)
	}
	return pathComponents(a.Path) < pathComponents(b.Path)
}

func pathComponents(p string) int {
	p = filepath.ToSlash(filepath.Clean(p))
	n := 0
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			n++
		}
	}
	// 根目录本身也算一段（与 "/a/b" => [/, a, b] 的直觉一致）。
	if strings.HasPrefix(p, "/") {
		n++
	}
	return n
}

func wastedSpace(files []FileRecord, original int, total int64) int64 {
	if len(files) == 0 {
		return 0
	}
	return total - files[original].Size
}

// FileRef 是 (group_id, file_index) 复合键，删除/打开请求都用它定位文件。
type FileRef struct {
	Group int `json:"group" yaml:"group"`
	Index int `json:"index" yaml:"index"`
}

// Resolve 在 groups 中按 ID 查找 ref 指向的文件。
func (r FileRef) Resolve(groups []DuplicateGroup) (FileRecord, bool) {
	for i := range groups {
		if groups[i].ID != r.Group {
			continue
		}
		if r.Index < 0 || r.Index >= len(groups[i].Files) {
			return FileRecord{}, false
		}
		return groups[i].Files[r.Index], true
	}
	return FileRecord{}, false
}

// Redundant 返回除 Original 外的所有成员引用（即删除候选）。
func (g DuplicateGroup) Redundant() []FileRef {
	out := make([]FileRef, 0, len(g.Files)-1)
	for i := range g.Files {
		if i == g.Original {
			continue
		}
		out = append(out, FileRef{Group: g.ID, Index: i})
	}
	return out
}
