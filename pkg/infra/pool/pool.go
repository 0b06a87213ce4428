package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"
)

// Type defines the type of worker pool.
type Type string

const (
	// DefaultPool 默认通用池
	DefaultPool Type = "default"
	// BackgroundPool 请求结束后继续执行的后台任务池（事实抽取等）
	BackgroundPool Type = "background"
)

// Config defines the configuration for the worker pool.
type Config struct {
	// Capacity 池容量（最大并发 goroutine 数）
	Capacity int
	// ExpiryDuration goroutine 空闲过期时间
	ExpiryDuration time.Duration
	// PreAlloc 是否预分配内存
	PreAlloc bool
	// Nonblocking 提交任务是否非阻塞（若池满则返回 ErrPoolOverload）
	Nonblocking bool
	// MaxBlockingTasks 当 Nonblocking=false 时，最大等待任务数（0 表示无限制）
	MaxBlockingTasks int
}

// DefaultPoolConfig 返回默认池配置
func DefaultPoolConfig() *Config {
	return &Config{
		Capacity:       1000,
		ExpiryDuration: 10 * time.Second,
	}
}

// BackgroundPoolConfig 返回后台任务池配置，池满时立即拒绝，由调用方决定降级方式
func BackgroundPoolConfig(capacity int) *Config {
	if capacity <= 0 {
		capacity = 8
	}
	return &Config{
		Capacity:       capacity,
		ExpiryDuration: 60 * time.Second,
		Nonblocking:    true,
	}
}

// Pool represents a worker pool.
type Pool struct {
	name     string
	typ      Type
	pool     *ants.Pool
	stats    statsCounter
	closed   atomic.Bool
	closedMu sync.Mutex
}

type statsCounter struct {
	submitted atomic.Int64
	completed atomic.Int64
	rejected  atomic.Int64
	panics    atomic.Int64
	fallback  atomic.Int64
}

// Stats contains statistics about the worker pool.
type Stats struct {
	Submitted int64 `json:"submitted"` // 已提交任务数
	Completed int64 `json:"completed"` // 已完成任务数
	Rejected  int64 `json:"rejected"`  // 拒绝任务数
	Panics    int64 `json:"panics"`    // 恢复的 panic 数
	Fallback  int64 `json:"fallback"`  // 池拒绝后改用独立 goroutine 执行的任务数
	Running   int   `json:"running"`
	Capacity  int   `json:"capacity"`
}

// NewPool creates a new worker pool with the given configuration.
func NewPool(name string, typ Type, config *Config) (*Pool, error) {
	if config == nil {
		config = DefaultPoolConfig()
	}

	p := &Pool{name: name, typ: typ}
	pool, err := ants.NewPool(config.Capacity,
		ants.WithExpiryDuration(config.ExpiryDuration),
		ants.WithPreAlloc(config.PreAlloc),
		ants.WithNonblocking(config.Nonblocking),
		ants.WithMaxBlockingTasks(config.MaxBlockingTasks),
		ants.WithPanicHandler(func(r interface{}) {
			p.stats.panics.Add(1)
			logger.Errorw("Worker panic recovered", "pool", name, "panic", r)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create ants pool %s: %w", name, err)
	}
	p.pool = pool

	logger.Infow("Worker pool created", "name", name, "type", string(typ), "capacity", config.Capacity)
	return p, nil
}

// Name 返回池名称
func (p *Pool) Name() string {
	return p.name
}

// Type 返回池类型
func (p *Pool) Type() Type {
	return p.typ
}

// Submit 提交任务到池中执行
func (p *Pool) Submit(task func()) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}

	err := p.pool.Submit(func() {
		defer p.stats.completed.Add(1)
		task()
	})
	if err != nil {
		if errors.Is(err, ants.ErrPoolOverload) {
			p.stats.rejected.Add(1)
			return ErrPoolOverload
		}
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	p.stats.submitted.Add(1)
	return nil
}

// SubmitWithContext 提交任务，开始执行前上下文已取消则跳过
func (p *Pool) SubmitWithContext(ctx context.Context, task func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.Submit(func() {
		if ctx.Err() != nil {
			return
		}
		task()
	})
}

// Go 提交任务；池满或已关闭时退化为独立 goroutine，保证任务一定执行
func (p *Pool) Go(task func()) {
	err := p.Submit(task)
	if err == nil {
		return
	}
	logger.Debugw("Worker pool rejected task, running in goroutine", "pool", p.name, "error", err.Error())

	p.stats.fallback.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.stats.panics.Add(1)
				logger.Errorw("Worker panic recovered", "pool", p.name, "panic", r)
			}
		}()
		task()
	}()
}

// Release 关闭池，等待运行中的任务直到超时
func (p *Pool) Release(timeout time.Duration) error {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	if p.closed.Swap(true) {
		return nil
	}
	logger.Infow("Worker pool released", "name", p.name)
	if timeout <= 0 {
		p.pool.Release()
		return nil
	}
	return p.pool.ReleaseTimeout(timeout)
}

// Stats 返回池统计信息快照
func (p *Pool) Stats() Stats {
	return Stats{
		Submitted: p.stats.submitted.Load(),
		Completed: p.stats.completed.Load(),
		Rejected:  p.stats.rejected.Load(),
		Panics:    p.stats.panics.Load(),
		Fallback:  p.stats.fallback.Load(),
		Running:   p.pool.Running(),
		Capacity:  p.pool.Cap(),
	}
}
