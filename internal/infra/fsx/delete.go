package fsx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"

	"github.com/John-Robertt/dejavu/internal/domain"
)

// LockFileName 是 apply 模式下加在扫描根目录上的独占锁文件名。
const LockFileName = ".dejavu.lock"

var (
	// ErrLocked 表示另一个进程正在对同一根目录执行删除。
	ErrLocked = errors.New("扫描根目录已被其他进程锁定")
	// ErrOriginal 表示请求删除的是分组的推荐保留文件；该请求永远被拒绝。
	ErrOriginal = errors.New("拒绝删除推荐保留的原始文件")
	// ErrUnknownRef 表示 FileRef 无法在分组中解析。
	ErrUnknownRef = errors.New("无效的文件引用")
	// ErrChanged 表示文件在扫描之后被修改（大小不一致）。
	ErrChanged = errors.New("文件在扫描后已变化")
)

// RootLock 是扫描根目录上的进程间独占锁。
type RootLock struct {
	path string
	fl   *flock.Flock
}

// LockRoot 以非阻塞方式获取 <root>/.dejavu.lock；已被占用时返回 ErrLocked。
func LockRoot(root string) (*RootLock, error) {
	p := filepath.Join(root, LockFileName)
	fl := flock.New(p)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("获取锁 %q 失败：%w", p, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w：%s", ErrLocked, p)
	}
	return &RootLock{path: p, fl: fl}, nil
}

// Unlock 释放锁。锁文件保留在原处：删除它会让已打开旧 inode 的进程与新建锁文件的进程同时持锁。
func (l *RootLock) Unlock() error {
	if l == nil {
		return nil
	}
	return l.fl.Unlock()
}

// Deleter 删除（或移入回收目录）分组中的冗余文件。
//
//   - 推荐保留的原始文件永远不会被删除
//   - TrashDir 非空时使用 rename 移入 TrashDir（保持相对 Root 的目录结构，不覆盖已有文件）；
//     跨盘时返回 CrossDeviceError，不做 copy+delete
//   - 删除前重新 stat，大小与扫描结果不一致则拒绝
//   - DeleteRedundant 只处理 AutoDeletable 的成员（见 domain.DuplicateGroup.AutoDeletable）
type Deleter struct {
	Fs       afero.Fs
	Root     string
	TrashDir string
	// Threshold 是 similar 分组成员与推荐保留文件之间允许自动删除的最大距离。
	Threshold int
}

// Delete 解析 ref 并删除对应文件。
func (d *Deleter) Delete(groups []domain.DuplicateGroup, ref domain.FileRef) (string, error) {
	g, ok := findGroup(groups, ref.Group)
	if !ok {
		return "", fmt.Errorf("%w：%+v", ErrUnknownRef, ref)
	}
	rec, ok := ref.Resolve(groups)
	if !ok {
		return "", fmt.Errorf("%w：%+v", ErrUnknownRef, ref)
	}
	if g.Original == ref.Index {
		return rec.Path, fmt.Errorf("%w：%s", ErrOriginal, rec.Path)
	}

	fi, err := d.Fs.Stat(rec.Path)
	if err != nil {
		return rec.Path, err
	}
	if !fi.Mode().IsRegular() {
		return rec.Path, fmt.Errorf("不是普通文件：%s（%s）", rec.Path, fi.Mode().Type())
	}
	if fi.Size() != rec.Size {
		return rec.Path, fmt.Errorf("%w：%s（扫描时 %d 字节，当前 %d 字节）", ErrChanged, rec.Path, rec.Size, fi.Size())
	}

	if d.TrashDir == "" {
		return rec.Path, d.Fs.Remove(rec.Path)
	}
	return rec.Path, d.moveToTrash(rec.Path)
}

func (d *Deleter) moveToTrash(src string) error {
	rel, err := filepath.Rel(d.Root, src)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		rel = filepath.Base(src)
	}
	dst := filepath.Join(d.TrashDir, rel)

	if _, err := d.Fs.Stat(dst); err == nil {
		return &PathTypeConflictError{Path: dst, Want: "absent", Got: "exists"}
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := d.Fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return wrapRename(src, dst, d.Fs.Rename(src, dst))
}

// DeleteRedundant 对每个分组的每个冗余成员执行删除，逐个记录结果。
// 单个文件失败不影响其余文件；需要人工确认的成员不删除，状态为 planned。
func (d *Deleter) DeleteRedundant(groups []domain.DuplicateGroup, onDone func(domain.DeleteResult)) []domain.DeleteResult {
	out := make([]domain.DeleteResult, 0)
	for _, g := range groups {
		for _, ref := range g.Redundant() {
			if !g.AutoDeletable(ref.Index, d.Threshold) {
				res := domain.DeleteResult{Ref: ref, Path: g.Files[ref.Index].Path, Status: domain.DeleteStatusPlanned}
				out = append(out, res)
				if onDone != nil {
					onDone(res)
				}
				continue
			}
			path, err := d.Delete(groups, ref)
			res := domain.DeleteResult{Ref: ref, Path: path, Status: domain.DeleteStatusDeleted}
			if err != nil {
				res.Status = domain.DeleteStatusFailed
				res.Code = deleteCode(err)
				res.Error = err.Error()
			}
			out = append(out, res)
			if onDone != nil {
				onDone(res)
			}
		}
	}
	return out
}

// PlanRedundant 返回 dry-run 下将会删除的文件列表（不触碰文件系统）。
func PlanRedundant(groups []domain.DuplicateGroup) []domain.DeleteResult {
	out := make([]domain.DeleteResult, 0)
	for _, g := range groups {
		for _, ref := range g.Redundant() {
			rec := g.Files[ref.Index]
			out = append(out, domain.DeleteResult{Ref: ref, Path: rec.Path, Status: domain.DeleteStatusPlanned})
		}
	}
	return out
}

// deleteCode 把删除错误映射为报告中的 error_code。
func deleteCode(err error) string {
	switch {
	case errors.Is(err, ErrChanged):
		return domain.ErrCodeFileChanged
	case IsCrossDevice(err):
		return domain.ErrCodeCrossDevice
	case IsPathTypeConflict(err):
		return domain.ErrCodeTrashConflict
	default:
		return domain.ErrCodeDeleteFailed
	}
}

func findGroup(groups []domain.DuplicateGroup, id int) (domain.DuplicateGroup, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return domain.DuplicateGroup{}, false
}
