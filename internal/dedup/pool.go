package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/dejavu/internal/domain"
)

// DefaultWorkers 是未指定并发度时的 worker 数。
const DefaultWorkers = 4

// Options 控制一次检测调用。零值可用。
type Options struct {
	// Workers 是指纹计算的并发度（<1 时使用 DefaultWorkers）。
	Workers int
	// Threshold 是感知指纹的最大汉明距离（只对 FindSimilar 生效）。
	Threshold int
	// Linkage 是聚类的连接方式（只对 FindSimilar 生效；空值为 LinkAny）。
	Linkage Linkage
	// FirstID 是本次调用分配的第一个分组编号（<1 时从 1 开始）。
	FirstID int
	// Progress 在每个文件处理完成后调用；可能来自多个 goroutine，实现必须并发安全。
	// 只用于展示，不参与任何正确性判断。
	Progress func(done, total int)
	// Logger 用于输出逐文件的跳过诊断；nil 时使用 slog.Default()。
	Logger *slog.Logger
}

func (o Options) workers() int {
	if o.Workers < 1 {
		return DefaultWorkers
	}
	return o.Workers
}

func (o Options) firstID() int {
	if o.FirstID < 1 {
		return 1
	}
	return o.FirstID
}

func (o Options) linkage() Linkage {
	if o.Linkage == "" {
		return LinkAny
	}
	return o.Linkage
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Result 是一个阶段的输出：分组 + 被跳过文件的旁路列表。
type Result struct {
	Groups  []domain.DuplicateGroup
	Skipped []domain.SkippedFile
}

// FatalError 表示 worker 内部发生 panic。这是唯一会让整批失败的情况：
// 此时无法再信任聚合结果的完整性。
type FatalError struct {
	Stage string
	Path  string
	Value any
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s 阶段 worker 异常终止（%q）：%v", e.Stage, e.Path, e.Value)
}

// runPool 用有界 worker 池对 records 逐个执行 work，结果以消息形式发给唯一的 sink goroutine。
//
// - sink 独占自己的状态（map/slice），无需加锁
// - 完成计数为原子变量，在 sink 之外递增
// - worker panic 被转换为 *FatalError 并终止后续派发
// - ctx 取消后不再派发新任务；已在执行的任务会跑完，随后返回 ctx.Err()
func runPool[T any](ctx context.Context, stage string, records []domain.FileRecord, opts Options,
	work func(i int, rec domain.FileRecord) T, sink func(T)) error {

	total := len(records)
	msgs := make(chan T)
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		for m := range msgs {
			sink(m)
		}
	}()

	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.workers())

	for i := range records {
		if gctx.Err() != nil {
			break
		}
		i, rec := i, records[i]
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &FatalError{Stage: stage, Path: rec.Path, Value: r, Stack: debug.Stack()}
				}
			}()

			m := work(i, rec)
			msgs <- m

			n := done.Add(1)
			if opts.Progress != nil {
				opts.Progress(int(n), total)
			}
			return nil
		})
	}

	err := g.Wait()
	close(msgs)
	<-sinkDone

	if err != nil {
		return err
	}
	return ctx.Err()
}
