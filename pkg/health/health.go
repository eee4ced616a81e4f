package health

import (
	"context"
	"sync"
	"time"
)

// Status 健康状态
type Status string

const (
	// StatusHealthy 健康
	StatusHealthy Status = "healthy"
	// StatusUnhealthy 不健康
	StatusUnhealthy Status = "unhealthy"
	// StatusDegraded 降级
	StatusDegraded Status = "degraded"
)

// CheckResult 检查结果
type CheckResult struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Checker 健康检查器接口
type Checker interface {
	// Check 执行健康检查
	Check(ctx context.Context) CheckResult
	// Name 检查器名称
	Name() string
}

// HealthChecker 健康检查管理器
type HealthChecker struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	results  map[string]CheckResult
}

// NewHealthChecker 创建健康检查管理器
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checkers: make(map[string]Checker),
		results:  make(map[string]CheckResult),
	}
}

// Register 注册检查器
func (h *HealthChecker) Register(checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[checker.Name()] = checker
}

// Check 执行所有检查
func (h *HealthChecker) Check(ctx context.Context) map[string]CheckResult {
	h.mu.RLock()
	checkers := make([]Checker, 0, len(h.checkers))
	for _, checker := range h.checkers {
		checkers = append(checkers, checker)
	}
	h.mu.RUnlock()

	results := make(map[string]CheckResult)
	var wg sync.WaitGroup

	for _, checker := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			result := c.Check(ctx)
			h.mu.Lock()
			h.results[c.Name()] = result
			results[c.Name()] = result
			h.mu.Unlock()
		}(checker)
	}

	wg.Wait()
	return results
}

// GetStatus 获取整体状态
func (h *HealthChecker) GetStatus(ctx context.Context) Status {
	results := h.Check(ctx)

	hasUnhealthy := false
	hasDegraded := false

	for _, result := range results {
		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// PingChecker checks a dependency that answers a ping, such as the database
// or the Redis cache.
type PingChecker struct {
	name   string
	pingFn func(context.Context) error
}

// NewPingChecker 创建检查器
func NewPingChecker(name string, pingFn func(context.Context) error) *PingChecker {
	return &PingChecker{
		name:   name,
		pingFn: pingFn,
	}
}

// Name 返回检查器名称
func (p *PingChecker) Name() string {
	return p.name
}

// Check 执行检查
func (p *PingChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := p.pingFn(ctx)
	return result(start, err, nil)
}

// result builds a CheckResult for a check that started at start.
func result(start time.Time, err error, details map[string]interface{}) CheckResult {
	r := CheckResult{
		Status:    StatusHealthy,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Details:   details,
	}
	if err != nil {
		r.Status = StatusUnhealthy
		r.Error = err.Error()
	}
	return r
}
