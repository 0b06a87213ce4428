// Package resilience 为 LLM 调用提供重试与熔断。
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrCircuitOpen 熔断器打开时返回。
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig 熔断器配置。
type BreakerConfig struct {
	// MaxFailures 连续失败多少次后打开熔断器。
	MaxFailures int
	// OpenTimeout 打开状态持续时间，到期后进入半开状态。
	OpenTimeout time.Duration
	// HalfOpenMaxCalls 半开状态允许的探测调用数。
	HalfOpenMaxCalls int
}

// DefaultBreakerConfig 返回默认熔断器配置。
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// State 熔断器状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Snapshot 熔断器状态快照。
type Snapshot struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// Breaker 计数型熔断器。
type Breaker struct {
	name   string
	config *BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	lastFailure time.Time
	probes      int
}

// NewBreaker 创建熔断器。
func NewBreaker(name string, config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{name: name, config: config, now: time.Now}
}

// Allow 判断当前是否允许一次调用。
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.OpenTimeout {
			return ErrCircuitOpen
		}
		logger.Infow("circuit breaker half-open", "name", b.name)
		b.state = StateHalfOpen
		b.probes = 0
		fallthrough
	case StateHalfOpen:
		if b.probes >= b.config.HalfOpenMaxCalls {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

// Record 记录一次调用结果。
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state == StateHalfOpen {
			logger.Infow("circuit breaker closed", "name", b.name)
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == StateHalfOpen || b.failures >= b.config.MaxFailures {
		if b.state != StateOpen {
			logger.Warnw("circuit breaker open", "name", b.name, "failures", b.failures, "error", err.Error())
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Execute 在熔断器保护下执行 fn。
func (b *Breaker) Execute(fn func() error) error {
	if err := b.Allow(); err != nil {
		return err
	}
	err := fn()
	b.Record(err)
	return err
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回状态快照。
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Name:        b.name,
		State:       b.state.String(),
		Failures:    b.failures,
		LastFailure: b.lastFailure,
	}
}
