package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEffective_ConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{})
	assert.Equal(t, ErrCodeNotFound, Code(err), "err=%v", err)
}

func TestLoadEffective_ConfigMissingPath(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("mode = \"exact\"\n"))

	_, err := LoadEffective(cwd, CLIArgs{})
	assert.Equal(t, ErrCodeMissingPath, Code(err), "err=%v", err)
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()
	root := mkdir(t, filepath.Join(cwd, "root"))

	eff, err := LoadEffective(cwd, CLIArgs{Path: root})
	require.NoError(t, err)

	assert.Equal(t, root, eff.Path)
	assert.Equal(t, DefaultMode, eff.Mode)
	assert.Equal(t, DefaultThreshold, eff.Threshold)
	assert.Equal(t, DefaultLinkage, eff.Linkage)
	assert.Equal(t, DefaultMinSize, eff.MinSize)
	assert.Equal(t, DefaultConcurrency, eff.Concurrency)
	assert.True(t, eff.Images)
	assert.True(t, eff.Videos)
	assert.False(t, eff.Apply)
	assert.Empty(t, eff.ReportPath)
	assert.Equal(t, DefaultReportFmt, eff.ReportFormat)
}

func TestLoadEffective_ApplyCLIOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"media\"\napply = true\n"))

	eff, err := LoadEffective(cwd, CLIArgs{
		Apply:    false,
		ApplySet: true, // --apply=false
	})
	require.NoError(t, err)

	assert.False(t, eff.Apply)
	assert.False(t, eff.Trash, "默认不应启用 trash")
	assert.Equal(t, filepath.Join(cwd, "media"), eff.Path)
}

func TestLoadEffective_TrashMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"p\"\ntrash = true\n"))

	eff, err := LoadEffective(cwd, CLIArgs{})
	require.NoError(t, err)
	assert.True(t, eff.Trash)

	eff, err = LoadEffective(cwd, CLIArgs{Trash: false, TrashSet: true})
	require.NoError(t, err)
	assert.False(t, eff.Trash, "--trash=false 应覆盖配置文件")
}

func TestLoadEffective_ThresholdMergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte("path = \"p\"\nthreshold = 0\n"))

	// 配置文件显式写 0，不能被默认值覆盖。
	eff, err := LoadEffective(cwd, CLIArgs{})
	require.NoError(t, err)
	assert.Equal(t, 0, eff.Threshold)

	eff, err = LoadEffective(cwd, CLIArgs{Threshold: 12, ThresholdSet: true})
	require.NoError(t, err)
	assert.Equal(t, 12, eff.Threshold)
}

func TestLoadEffective_ThresholdOutOfRange(t *testing.T) {
	cwd := t.TempDir()
	root := mkdir(t, filepath.Join(cwd, "root"))

	for _, v := range []int{-1, 65} {
		_, err := LoadEffective(cwd, CLIArgs{Path: root, Threshold: v, ThresholdSet: true})
		assert.Equal(t, ErrCodeInvalid, Code(err), "threshold=%d err=%v", v, err)
	}
}

func TestLoadEffective_ConcurrencyRange(t *testing.T) {
	cwd := t.TempDir()
	root := mkdir(t, filepath.Join(cwd, "root"))

	for _, v := range []int{0, -5, MaxConcurrency + 1} {
		_, err := LoadEffective(cwd, CLIArgs{Path: root, Concurrency: v, ConcurrencySet: true})
		assert.Equal(t, ErrCodeInvalid, Code(err), "--concurrency %d err=%v", v, err)
	}

	for _, v := range []int{1, MaxConcurrency} {
		eff, err := LoadEffective(cwd, CLIArgs{Path: root, Concurrency: v, ConcurrencySet: true})
		require.NoError(t, err)
		assert.Equal(t, v, eff.Concurrency)
	}

	writeFile(t, filepath.Join(root, FileName), []byte("concurrency = 100\n"))
	_, err := LoadEffective(cwd, CLIArgs{Path: root})
	assert.Equal(t, ErrCodeInvalid, Code(err), "配置文件越界也应报错")

	// 配置文件写 0 视为未填写。
	writeFile(t, filepath.Join(root, FileName), []byte("concurrency = 0\n"))
	eff, err := LoadEffective(cwd, CLIArgs{Path: root})
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, eff.Concurrency)
}

func TestLoadEffective_MediaToggles(t *testing.T) {
	cwd := t.TempDir()
	root := mkdir(t, filepath.Join(cwd, "root"))
	writeFile(t, filepath.Join(root, FileName), []byte("videos = false\n"))

	eff, err := LoadEffective(cwd, CLIArgs{Path: root})
	require.NoError(t, err)
	assert.True(t, eff.Images)
	assert.False(t, eff.Videos)

	eff, err = LoadEffective(cwd, CLIArgs{Path: root, VideosOnly: true})
	require.NoError(t, err)
	assert.False(t, eff.Images, "--videos-only 应覆盖配置")
	assert.True(t, eff.Videos)

	_, err = LoadEffective(cwd, CLIArgs{Path: root, ImagesOnly: true, VideosOnly: true})
	assert.Equal(t, ErrCodeInvalid, Code(err))
}

func TestLoadEffective_InvalidEnums(t *testing.T) {
	cases := []string{
		"path = \"p\"\nmode = \"fuzzy\"\n",
		"path = \"p\"\nlinkage = \"complete\"\n",
		"path = \"p\"\n[report]\nformat = \"xml\"\n",
		"path = \"p\"\n[log]\nlevel = \"trace\"\n",
		"path = \"p\"\nmin_size = -1\n",
	}
	for _, c := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(c))

		_, err := LoadEffective(cwd, CLIArgs{})
		assert.Equal(t, ErrCodeInvalid, Code(err), "%q: err=%v", c, err)
	}
}

func TestLoadEffective_ReportPathRelativeToRoot(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(
		"path = \"lib\"\nexclude_dirs = [\"tmp\"]\n[report]\npath = \".dejavu/report.html\"\nformat = \"HTML\"\n"))

	eff, err := LoadEffective(cwd, CLIArgs{})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cwd, "lib", ".dejavu", "report.html"), eff.ReportPath)
	assert.Equal(t, "html", eff.ReportFormat)
	assert.Equal(t, []string{"tmp"}, eff.ExcludeDirs)
}

func TestLoadEffective_CLIPath_InvalidConfig(t *testing.T) {
	cwd := t.TempDir()
	root := mkdir(t, filepath.Join(cwd, "root"))
	writeFile(t, filepath.Join(root, FileName), []byte("path = "))

	_, err := LoadEffective(cwd, CLIArgs{Path: root})
	assert.Equal(t, ErrCodeInvalid, Code(err), "err=%v", err)
}

func mkdir(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
	return path
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, b, 0o644))
}
