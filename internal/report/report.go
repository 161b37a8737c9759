// Package report 把 RunReport 编码为对外格式（JSON / YAML / HTML）并落盘。
package report

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/dejavu/internal/domain"
	"github.com/John-Robertt/dejavu/internal/infra/fsx"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatHTML = "html"
)

// Encode 按 format 编码报告。调用方应先执行 rr.Finalize()。
func Encode(rr domain.RunReport, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return EncodeJSON(rr)
	case FormatYAML:
		return EncodeYAML(rr)
	case FormatHTML:
		return EncodeHTML(rr)
	default:
		return nil, fmt.Errorf("不支持的报告格式：%q", format)
	}
}

// EncodeJSON 输出两空格缩进、以换行结尾的 JSON（stdout 契约格式）。
func EncodeJSON(rr domain.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeYAML(rr domain.RunReport) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(rr); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write 编码并原子写入 path（覆盖同名文件）。
func Write(path, format string, rr domain.RunReport) error {
	b, err := Encode(rr, format)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicPath(path, b)
}
