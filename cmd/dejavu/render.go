package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/John-Robertt/dejavu/internal/domain"
)

// renderGroups 把分组渲染为一张表：每个文件一行，推荐保留的文件标为“保留”。
func renderGroups(groups []domain.DuplicateGroup) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"组", "类型", "#", "路径", "大小", "修改时间", "建议"})

	for gi, g := range groups {
		for i, f := range g.Files {
			id, kind := "", ""
			if i == 0 {
				id, kind = strconv.Itoa(g.ID), string(g.Kind)
			}
			action := "删除"
			if i == g.Original {
				action = "保留"
			}
			tw.AppendRow(table.Row{id, kind, i, f.Path, humanize.IBytes(uint64(f.Size)), f.ModTime.Local().Format("2006-01-02 15:04"), action})
		}
		if gi < len(groups)-1 {
			tw.AppendSeparator()
		}
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

// summaryLine 生成一行摘要；colored=false 时不含 ANSI 转义。
func summaryLine(rr domain.RunReport, colored bool) string {
	s := rr.Summary
	line := fmt.Sprintf("完成：files=%d exact=%d similar=%d duplicates=%d reclaimable=%s skipped=%d",
		s.Files, s.ExactGroups, s.SimilarGroups, s.Duplicates, humanize.IBytes(uint64(s.WastedBytes)), s.Skipped)
	if !rr.DryRun {
		line += fmt.Sprintf(" deleted=%d delete_failed=%d needs_review=%d", s.Deleted, s.DeleteFailed, s.NeedsReview)
	}
	if rr.ErrorCode != "" {
		line += " error=" + rr.ErrorCode
	}
	if !colored {
		return line
	}

	c := color.New(color.FgGreen, color.Bold)
	switch {
	case rr.ErrorCode != "" || s.DeleteFailed > 0:
		c = color.New(color.FgRed, color.Bold)
	case s.Skipped > 0 || s.NeedsReview > 0:
		c = color.New(color.FgYellow)
	}
	return c.Sprint(line)
}

// problemLines 列出需要用户关注的条目（批级错误、跳过的文件、删除失败）。
func problemLines(rr domain.RunReport) []string {
	out := make([]string, 0)
	if rr.ErrorCode != "" {
		out = append(out, fmt.Sprintf("%s: %s", rr.ErrorCode, rr.ErrorMsg))
	}
	for _, sk := range rr.Skipped {
		out = append(out, fmt.Sprintf("%s %s: %s", sk.Path, sk.Code, sk.Reason))
	}
	for _, d := range rr.Deletes {
		switch {
		case d.Status == domain.DeleteStatusFailed:
			out = append(out, fmt.Sprintf("%s %s: %s", d.Path, d.Code, d.Error))
		case d.Status == domain.DeleteStatusPlanned && !rr.DryRun:
			out = append(out, fmt.Sprintf("%s needs_review: 分组 %d 中与推荐保留文件差异超过阈值，未删除", d.Path, d.Ref.Group))
		}
	}
	return out
}
