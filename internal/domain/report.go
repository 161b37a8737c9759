package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ModeExact   = "exact"
	ModeSimilar = "similar"
	ModeAll     = "all"
)

const (
	// DeleteStatusPlanned：dry-run 的删除计划；apply 下表示该文件需要人工确认，未被删除。
	DeleteStatusPlanned = "planned"
	DeleteStatusDeleted = "deleted"
	DeleteStatusFailed  = "failed"
)

const (
	ErrCodeReadFailed        = "read_failed"
	ErrCodeDecodeFailed      = "decode_failed"
	ErrCodeDeleteFailed      = "delete_failed"
	ErrCodeFileChanged       = "file_changed"
	ErrCodeCrossDevice       = "cross_device"
	ErrCodeTrashConflict     = "trash_conflict"
	ErrCodeScanFailed        = "scan_failed"
	ErrCodeFatal             = "fatal"
	ErrCodeCanceled          = "canceled"
	ErrCodeLocked            = "locked"
	ErrCodeReportFailed      = "report_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
	ErrCodeConfigMissingPath = "config_missing_path"
)

// RunReport 是对外稳定输出（stdout JSON / --report 文件）的结构。
type RunReport struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Path   string `json:"path" yaml:"path"`
	Mode   string `json:"mode" yaml:"mode"`
	DryRun bool   `json:"dry_run" yaml:"dry_run"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	Summary ReportSummary    `json:"summary" yaml:"summary"`
	Groups  []DuplicateGroup `json:"groups" yaml:"groups"`
	Skipped []SkippedFile    `json:"skipped" yaml:"skipped"`
	Deletes []DeleteResult   `json:"deletes" yaml:"deletes"`

	// ErrorCode/ErrorMsg 只在整批失败（配置错误、扫描失败、fatal）时非空。
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty" yaml:"error_msg,omitempty"`
}

type ReportSummary struct {
	Files         int   `json:"files" yaml:"files"`
	ExactGroups   int   `json:"exact_groups" yaml:"exact_groups"`
	SimilarGroups int   `json:"similar_groups" yaml:"similar_groups"`
	Duplicates    int   `json:"duplicates" yaml:"duplicates"`
	WastedBytes   int64 `json:"wasted_bytes" yaml:"wasted_bytes"`
	Skipped       int   `json:"skipped" yaml:"skipped"`
	Deleted       int   `json:"deleted" yaml:"deleted"`
	DeleteFailed  int   `json:"delete_failed" yaml:"delete_failed"`
	// NeedsReview 是 apply 下因距离推荐保留文件过远而未删除的文件数。
	NeedsReview int `json:"needs_review" yaml:"needs_review"`
}

// DeleteResult 是 apply 模式下单个删除请求的结果。
type DeleteResult struct {
	Ref    FileRef `json:"ref" yaml:"ref"`
	Path   string  `json:"path" yaml:"path"`
	Status string  `json:"status" yaml:"status"`
	Code   string  `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Error  string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) skipped 稳定排序：按 path 字典序（groups 的顺序由引擎决定，这里不动）
// 3) summary 由 groups/skipped/deletes 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Groups == nil {
		r.Groups = []DuplicateGroup{}
	}
	if r.Skipped == nil {
		r.Skipped = []SkippedFile{}
	}
	if r.Deletes == nil {
		r.Deletes = []DeleteResult{}
	}

	sort.SliceStable(r.Skipped, func(i, j int) bool { return r.Skipped[i].Path < r.Skipped[j].Path })

	s := ReportSummary{Files: r.Summary.Files}
	for _, g := range r.Groups {
		switch g.Kind {
		case GroupExact:
			s.ExactGroups++
		case GroupSimilar:
			s.SimilarGroups++
		}
		s.Duplicates += len(g.Files) - 1
		s.WastedBytes += g.WastedSpace
	}
	s.Skipped = len(r.Skipped)
	for _, d := range r.Deletes {
		switch d.Status {
		case DeleteStatusDeleted:
			s.Deleted++
		case DeleteStatusFailed:
			s.DeleteFailed++
		case DeleteStatusPlanned:
			if !r.DryRun {
				s.NeedsReview++
			}
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
// 当前只是透传 encoding/json 的默认行为。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
