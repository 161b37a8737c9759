package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/dejavu/internal/app/run"
	"github.com/John-Robertt/dejavu/internal/config"
	"github.com/John-Robertt/dejavu/internal/domain"
)

func sampleGroups(t *testing.T) []domain.DuplicateGroup {
	t.Helper()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g, err := domain.NewGroup(1, domain.GroupExact, []domain.FileRecord{
		{Path: "/lib/new.jpg", Size: 2048, ModTime: t0.Add(time.Hour)},
		{Path: "/lib/old.jpg", Size: 2048, ModTime: t0},
	})
	require.NoError(t, err)
	return []domain.DuplicateGroup{g}
}

func TestRenderGroups(t *testing.T) {
	out := renderGroups(sampleGroups(t))

	assert.Contains(t, out, "/lib/new.jpg")
	assert.Contains(t, out, "/lib/old.jpg")
	assert.Contains(t, out, "2.0 KiB")

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "old.jpg") {
			assert.Contains(t, line, "保留")
		}
		if strings.Contains(line, "new.jpg") {
			assert.Contains(t, line, "删除")
		}
	}
}

func TestSummaryLine(t *testing.T) {
	rr := domain.RunReport{DryRun: true, Groups: sampleGroups(t), Summary: domain.ReportSummary{Files: 5}}
	rr.Finalize()

	got := summaryLine(rr, false)
	assert.Equal(t, "完成：files=5 exact=1 similar=0 duplicates=1 reclaimable=2.0 KiB skipped=0", got)

	rr.DryRun = false
	rr.ErrorCode = domain.ErrCodeLocked
	assert.Contains(t, summaryLine(rr, false), "deleted=0 delete_failed=0 needs_review=0 error=locked")
}

func TestProblemLines(t *testing.T) {
	rr := domain.RunReport{
		Skipped: []domain.SkippedFile{{Path: "/x.jpg", Code: domain.ErrCodeDecodeFailed, Reason: "bad"}},
		Deletes: []domain.DeleteResult{
			{Path: "/y.jpg", Status: domain.DeleteStatusFailed, Code: domain.ErrCodeDeleteFailed, Error: "permission denied"},
			{Path: "/z.jpg", Status: domain.DeleteStatusDeleted},
			{Ref: domain.FileRef{Group: 2, Index: 2}, Path: "/w.jpg", Status: domain.DeleteStatusPlanned},
		},
	}
	assert.Equal(t, []string{
		"/x.jpg decode_failed: bad",
		"/y.jpg delete_failed: permission denied",
		"/w.jpg needs_review: 分组 2 中与推荐保留文件差异超过阈值，未删除",
	}, problemLines(rr))

	// dry-run 下所有条目都是计划，不单独提示。
	rr.DryRun = true
	assert.Len(t, problemLines(rr), 2)
}

func TestProgressUI_PhasesAndDeletes(t *testing.T) {
	var buf bytes.Buffer
	ui := newProgressUI(&buf)

	ui.OnStart(config.EffectiveConfig{Path: "/lib", Mode: domain.ModeAll, Threshold: 5, Linkage: "any", Images: true, Videos: true, Apply: true})
	for i := 1; i <= 3; i++ {
		ui.OnProgress(run.PhaseScan, i, 0)
	}
	require.NotNil(t, ui.bar)
	ui.OnPhaseDone(run.PhaseScan, map[string]any{"files": 3, "images": 2, "videos": 1}, time.Second)
	for i := 1; i <= 3; i++ {
		ui.OnProgress(run.PhaseExact, i, 3)
	}
	ui.OnProgress(run.PhaseExact, 2, 3) // 乱序到达不回退
	ui.OnPhaseDone(run.PhaseExact, map[string]any{"groups": 1, "skipped": 0}, time.Second)
	ui.OnDeleted(1, 2, domain.DeleteResult{Path: "/lib/b.jpg", Status: domain.DeleteStatusDeleted})
	ui.OnDeleted(2, 2, domain.DeleteResult{Path: "/lib/far.jpg", Status: domain.DeleteStatusPlanned})

	out := buf.String()
	assert.Contains(t, out, "dejavu scan (apply)")
	assert.Contains(t, out, "扫描: files=3 images=2 videos=1 (1.0s)")
	assert.Contains(t, out, "完全一致: groups=1 skipped=0")
	assert.Contains(t, out, "/lib/b.jpg")
	assert.Contains(t, out, "/lib/far.jpg（需人工确认）")
	assert.Nil(t, ui.bar)
}
