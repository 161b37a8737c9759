package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"

	"github.com/John-Robertt/dejavu/internal/domain"
)

const page = `<!DOCTYPE html>
<html lang="zh">
<head>
<meta charset="utf-8">
<title></title>
<style>
body{font-family:system-ui,sans-serif;margin:2em;color:#222}
table{border-collapse:collapse;width:100%;margin-bottom:1.5em}
th,td{border:1px solid #ddd;padding:4px 8px;text-align:left;font-size:14px}
tr.original{background:#eef8ee}
.error{color:#b00}
code{font-size:12px}
</style>
</head>
<body>
<h1></h1>
<p id="meta"></p>
<p id="error" class="error"></p>
<section id="summary"><h2>汇总</h2><table><tbody></tbody></table></section>
<section id="groups"><h2>重复分组</h2></section>
<section id="deletes"><h2>删除</h2><table><thead><tr><th>分组</th><th>路径</th><th>状态</th><th>错误</th></tr></thead><tbody></tbody></table></section>
<section id="skipped"><h2>跳过的文件</h2><table><thead><tr><th>路径</th><th>阶段</th><th>代码</th><th>原因</th></tr></thead><tbody></tbody></table></section>
</body>
</html>`

const groupSkeleton = `<div class="group"><h3></h3><p class="fp"><code></code></p>` +
	`<table><thead><tr><th>#</th><th>路径</th><th>大小</th><th>修改时间</th><th>建议</th></tr></thead><tbody></tbody></table></div>`

// EncodeHTML 渲染一个自包含的静态 HTML 报告。所有用户数据都经 SetText/SetAttr 写入，不拼接进 HTML 源码。
func EncodeHTML(rr domain.RunReport) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}

	doc.Find("title").SetText("dejavu 报告：" + rr.Path)
	doc.Find("h1").SetText("dejavu 重复文件报告")

	mode := "dry-run"
	if !rr.DryRun {
		mode = "apply"
	}
	doc.Find("#meta").SetText(fmt.Sprintf("%s · 模式 %s · %s · run %s · %s",
		rr.Path, rr.Mode, mode, rr.RunID, rr.FinishedAt.Format(time.RFC3339)))

	if rr.ErrorCode != "" {
		doc.Find("#error").SetText(rr.ErrorCode + "：" + rr.ErrorMsg)
	} else {
		doc.Find("#error").Remove()
	}

	summary := doc.Find("#summary tbody")
	s := rr.Summary
	for _, kv := range [][2]string{
		{"文件", strconv.Itoa(s.Files)},
		{"完全一致分组", strconv.Itoa(s.ExactGroups)},
		{"视觉相似分组", strconv.Itoa(s.SimilarGroups)},
		{"冗余文件", strconv.Itoa(s.Duplicates)},
		{"可回收空间", humanize.IBytes(uint64(s.WastedBytes))},
		{"跳过", strconv.Itoa(s.Skipped)},
		{"已删除", strconv.Itoa(s.Deleted)},
		{"删除失败", strconv.Itoa(s.DeleteFailed)},
	} {
		row := appendRow(summary, 2)
		row.Find("td").Eq(0).SetText(kv[0])
		row.Find("td").Eq(1).SetText(kv[1])
	}

	groups := doc.Find("#groups")
	for _, g := range rr.Groups {
		groups.AppendHtml(groupSkeleton)
		div := groups.Find("div.group").Last()
		div.SetAttr("id", "group-"+strconv.Itoa(g.ID))
		div.SetAttr("data-kind", string(g.Kind))
		div.Find("h3").SetText(fmt.Sprintf("#%d %s · %d 个文件 · 可回收 %s",
			g.ID, g.Kind, len(g.Files), humanize.IBytes(uint64(g.WastedSpace))))

		switch {
		case g.Exact != nil:
			div.Find("p.fp code").SetText("sha256 " + g.Exact.String())
		case g.Perceptual != nil:
			div.Find("p.fp code").SetText("ahash " + g.Perceptual.String())
		default:
			div.Find("p.fp").Remove()
		}

		tbody := div.Find("tbody")
		for i, f := range g.Files {
			row := appendRow(tbody, 5)
			cells := row.Find("td")
			cells.Eq(0).SetText(strconv.Itoa(i))
			cells.Eq(1).SetText(f.Path)
			cells.Eq(2).SetText(humanize.IBytes(uint64(f.Size)))
			cells.Eq(3).SetText(f.ModTime.UTC().Format(time.RFC3339))
			if i == g.Original {
				row.AddClass("original")
				cells.Eq(4).SetText("保留")
			} else {
				cells.Eq(4).SetText("删除")
			}
		}
	}

	deletes := doc.Find("#deletes tbody")
	for _, d := range rr.Deletes {
		row := appendRow(deletes, 4)
		cells := row.Find("td")
		cells.Eq(0).SetText(strconv.Itoa(d.Ref.Group))
		cells.Eq(1).SetText(d.Path)
		cells.Eq(2).SetText(d.Status)
		cells.Eq(3).SetText(d.Error)
		if d.Status == domain.DeleteStatusFailed {
			row.AddClass("error")
		}
	}

	skipped := doc.Find("#skipped tbody")
	for _, sk := range rr.Skipped {
		row := appendRow(skipped, 4)
		cells := row.Find("td")
		cells.Eq(0).SetText(sk.Path)
		cells.Eq(1).SetText(sk.Stage)
		cells.Eq(2).SetText(sk.Code)
		cells.Eq(3).SetText(sk.Reason)
	}

	out, err := doc.Html()
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// appendRow 在 tbody 末尾追加一行 n 个空单元格并返回该行。
func appendRow(tbody *goquery.Selection, n int) *goquery.Selection {
	tbody.AppendHtml("<tr>" + strings.Repeat("<td></td>", n) + "</tr>")
	return tbody.Find("tr").Last()
}
