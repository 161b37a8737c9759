package run

import (
	"time"

	"github.com/John-Robertt/dejavu/internal/config"
	"github.com/John-Robertt/dejavu/internal/domain"
)

// 阶段名称（OnPhaseDone / OnProgress 的 name 参数）。
const (
	PhaseScan       = "scan"
	PhaseExact      = "exact"
	PhasePerceptual = "perceptual"
	PhaseDelete     = "delete"
)

// Observer 用于把“运行进度/阶段/删除结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - Observer 的实现必须并发安全：OnProgress 可能来自多个 worker goroutine。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（用于打印阶段统计与耗时）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnProgress 在指纹阶段每处理完一个文件时调用；只用于展示。
	// 扫描阶段每找到一个媒体文件调用一次，此时 total 为 0（总数未知）。
	OnProgress(phase string, done, total int)
	// OnDeleted 在 apply 模式下每个删除请求完成后调用（成功或失败）。
	OnDeleted(idx, total int, res domain.DeleteResult)
}

type nopObserver struct{}

func (nopObserver) OnStart(config.EffectiveConfig)                    {}
func (nopObserver) OnPhaseDone(string, map[string]any, time.Duration) {}
func (nopObserver) OnProgress(string, int, int)                       {}
func (nopObserver) OnDeleted(int, int, domain.DeleteResult)           {}
