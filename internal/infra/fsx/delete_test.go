package fsx

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/dejavu/internal/domain"
)

var t0 = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

// twoFileGroup 构造 /lib/a.jpg（原始，较早）与 /lib/b.jpg（冗余）组成的分组。
func twoFileGroup(t *testing.T, fsys afero.Fs) []domain.DuplicateGroup {
	t.Helper()
	files := []domain.FileRecord{
		{Path: "/lib/a.jpg", Size: 3, ModTime: t0, Kind: domain.Image(domain.FormatJPEG)},
		{Path: "/lib/b.jpg", Size: 3, ModTime: t0.Add(time.Hour), Kind: domain.Image(domain.FormatJPEG)},
	}
	for _, f := range files {
		require.NoError(t, afero.WriteFile(fsys, f.Path, []byte("abc"), 0o644))
	}
	g, err := domain.NewGroup(1, domain.GroupExact, files)
	require.NoError(t, err)
	return []domain.DuplicateGroup{g}
}

// chainGroup 构造一个链式相连的 similar 分组：相邻成员距离 3，a 为推荐保留文件。
func chainGroup(t *testing.T, fsys afero.Fs) domain.DuplicateGroup {
	t.Helper()
	names := []string{"a", "b", "c", "d", "e"}
	fps := []domain.PerceptualFingerprint{0, 0b111, 0b111111, 0b111111111, 0b111111111111}

	files := make([]domain.FileRecord, 0, len(names))
	for i, n := range names {
		f := domain.FileRecord{
			Path:    "/lib/" + n + ".jpg",
			Size:    3,
			ModTime: t0.Add(time.Duration(i) * time.Hour),
			Kind:    domain.Image(domain.FormatJPEG),
		}
		require.NoError(t, afero.WriteFile(fsys, f.Path, []byte("abc"), 0o644))
		files = append(files, f)
	}
	g, err := domain.NewGroup(1, domain.GroupSimilar, files)
	require.NoError(t, err)
	return g.WithPerceptual(fps[0]).WithDistances(fps)
}

func TestDeleter_RemovesRedundantKeepsOriginal(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	d := &Deleter{Fs: fsys, Root: "/lib"}

	var seen int
	res := d.DeleteRedundant(groups, func(domain.DeleteResult) { seen++ })
	require.Len(t, res, 1)
	assert.Equal(t, 1, seen)
	assert.Equal(t, domain.DeleteStatusDeleted, res[0].Status)
	assert.Equal(t, "/lib/b.jpg", res[0].Path)
	assert.Equal(t, domain.FileRef{Group: 1, Index: 1}, res[0].Ref)

	exists(t, fsys, "/lib/a.jpg", true)
	exists(t, fsys, "/lib/b.jpg", false)
}

func TestDeleter_SimilarChainOnlyDeletesNearOriginal(t *testing.T) {
	fsys := afero.NewMemMapFs()
	g := chainGroup(t, fsys)
	require.Equal(t, 0, g.Original)
	require.Equal(t, []int{0, 3, 6, 9, 12}, g.Distances)

	d := &Deleter{Fs: fsys, Root: "/lib", Threshold: 3}
	var seen []string
	res := d.DeleteRedundant([]domain.DuplicateGroup{g}, func(r domain.DeleteResult) { seen = append(seen, r.Status) })

	status := map[string]string{}
	for _, r := range res {
		status[filepath.Base(r.Path)] = r.Status
	}
	assert.Equal(t, map[string]string{
		"b.jpg": domain.DeleteStatusDeleted,
		"c.jpg": domain.DeleteStatusPlanned,
		"d.jpg": domain.DeleteStatusPlanned,
		"e.jpg": domain.DeleteStatusPlanned,
	}, status)
	assert.Len(t, seen, 4, "需人工确认的成员也要回调")

	exists(t, fsys, "/lib/a.jpg", true)
	exists(t, fsys, "/lib/b.jpg", false)
	for _, n := range []string{"c", "d", "e"} {
		exists(t, fsys, "/lib/"+n+".jpg", true)
	}
}

func TestDeleter_SimilarWithoutDistancesNeverAutoDeleted(t *testing.T) {
	fsys := afero.NewMemMapFs()
	g := chainGroup(t, fsys)
	g.Distances = nil

	d := &Deleter{Fs: fsys, Root: "/lib", Threshold: 64}
	for _, r := range d.DeleteRedundant([]domain.DuplicateGroup{g}, nil) {
		assert.Equal(t, domain.DeleteStatusPlanned, r.Status, r.Path)
	}
}

func TestDeleter_RefusesOriginal(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	d := &Deleter{Fs: fsys, Root: "/lib"}

	_, err := d.Delete(groups, domain.FileRef{Group: 1, Index: groups[0].Original})
	assert.ErrorIs(t, err, ErrOriginal)
	exists(t, fsys, "/lib/a.jpg", true)
}

func TestDeleter_UnknownRef(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	d := &Deleter{Fs: fsys, Root: "/lib"}

	for _, ref := range []domain.FileRef{{Group: 9, Index: 0}, {Group: 1, Index: 5}} {
		_, err := d.Delete(groups, ref)
		assert.ErrorIs(t, err, ErrUnknownRef, "%+v", ref)
	}
}

func TestDeleter_ChangedSinceScanIsFailedResult(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	require.NoError(t, afero.WriteFile(fsys, "/lib/b.jpg", []byte("abcdef"), 0o644))
	d := &Deleter{Fs: fsys, Root: "/lib"}

	res := d.DeleteRedundant(groups, nil)
	require.Len(t, res, 1)
	assert.Equal(t, domain.DeleteStatusFailed, res[0].Status)
	assert.Equal(t, domain.ErrCodeFileChanged, res[0].Code)
	assert.NotEmpty(t, res[0].Error)
	exists(t, fsys, "/lib/b.jpg", true)
}

func TestDeleter_MissingFileIsDeleteFailed(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	require.NoError(t, fsys.Remove("/lib/b.jpg"))
	d := &Deleter{Fs: fsys, Root: "/lib"}

	res := d.DeleteRedundant(groups, nil)
	require.Len(t, res, 1)
	assert.Equal(t, domain.ErrCodeDeleteFailed, res[0].Code)
}

func TestDeleter_MoveToTrashKeepsLayoutAndNeverOverwrites(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)
	trash := filepath.Join("/lib", ".dejavu", "trash")
	d := &Deleter{Fs: fsys, Root: "/lib", TrashDir: trash}

	_, err := d.Delete(groups, domain.FileRef{Group: 1, Index: 1})
	require.NoError(t, err)
	exists(t, fsys, filepath.Join(trash, "b.jpg"), true)

	// 同名文件再次进入回收目录：拒绝覆盖。
	require.NoError(t, afero.WriteFile(fsys, "/lib/b.jpg", []byte("abc"), 0o644))
	res := d.DeleteRedundant(groups, nil)
	require.Len(t, res, 1)
	assert.Equal(t, domain.DeleteStatusFailed, res[0].Status)
	assert.Equal(t, domain.ErrCodeTrashConflict, res[0].Code)
	exists(t, fsys, "/lib/b.jpg", true)
}

func TestPlanRedundant(t *testing.T) {
	fsys := afero.NewMemMapFs()
	groups := twoFileGroup(t, fsys)

	plan := PlanRedundant(groups)
	require.Len(t, plan, 1)
	assert.Equal(t, domain.DeleteStatusPlanned, plan[0].Status)
	assert.Equal(t, "/lib/b.jpg", plan[0].Path)
	exists(t, fsys, "/lib/b.jpg", true)
}

func TestLockRoot_Exclusive(t *testing.T) {
	root := t.TempDir()

	l1, err := LockRoot(root)
	require.NoError(t, err)

	_, err = LockRoot(root)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, l1.Unlock())

	l2, err := LockRoot(root)
	require.NoError(t, err, "释放后应能再次加锁")
	require.NoError(t, l2.Unlock())
}

func TestLockRoot_UnlockKeepsLockFile(t *testing.T) {
	root := t.TempDir()

	l, err := LockRoot(root)
	require.NoError(t, err)
	require.NoError(t, l.Unlock())

	// 锁文件必须保留：所有进程始终对同一个 inode 加锁。
	_, err = os.Stat(filepath.Join(root, LockFileName))
	assert.NoError(t, err)
}

func exists(t *testing.T, fsys afero.Fs, path string, want bool) {
	t.Helper()
	ok, err := afero.Exists(fsys, path)
	require.NoError(t, err)
	assert.Equal(t, want, ok, path)
}
