package pool

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// DefaultWorkers 默认并发数
const DefaultWorkers = 4

// PanicHandler 任务 panic 时的回调
type PanicHandler func(recovered any)

// WorkerPool 协程池
//
// 用于限制并发协程数量。任务之间相互独立，单个任务 panic 不影响其他任务。
type WorkerPool struct {
	maxWorkers int
	taskQueue  chan func()
	wg         sync.WaitGroup
	logger     *zap.Logger
	onPanic    PanicHandler
	stopOnce   sync.Once
}

// Option 协程池配置项
type Option func(*WorkerPool)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(p *WorkerPool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPanicHandler 设置 panic 回调
func WithPanicHandler(h PanicHandler) Option {
	return func(p *WorkerPool) { p.onPanic = h }
}

// NewWorkerPool 创建协程池
//
// 参数:
//   - maxWorkers: 最大协程数，<= 0 时使用 DefaultWorkers
//   - queueSize: 任务队列大小
func NewWorkerPool(maxWorkers, queueSize int, opts ...Option) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &WorkerPool{
		maxWorkers: maxWorkers,
		taskQueue:  make(chan func(), queueSize),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Workers 返回协程数
func (p *WorkerPool) Workers() int { return p.maxWorkers }

// Start 启动协程池
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Submit 提交任务
//
// 队列已满时阻塞，直到有空位或 ctx 结束
func (p *WorkerPool) Submit(ctx context.Context, task func()) error {
	select {
	case p.taskQueue <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySubmit 尝试提交任务
//
// 如果队列已满，立即返回 false
func (p *WorkerPool) TrySubmit(task func()) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		return false
	}
}

// Stop 关闭队列并等待已提交的任务完成
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		close(p.taskQueue)
	})
	p.wg.Wait()
}

// worker 工作协程
func (p *WorkerPool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.run(task)
		}
	}
}

// run 执行任务（捕获 panic）
func (p *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", zap.String("panic", fmt.Sprint(r)))
			if p.onPanic != nil {
				p.onPanic(r)
			}
		}
	}()
	task()
}
