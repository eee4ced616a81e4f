package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"drccmis/pkg/cmis"
)

// Capabilities the DRC needs from the DMS.
const (
	CapabilityMultifiling = "Multifiling"
	CapabilityUnfiling    = "Unfiling"
	CapabilityChanges     = "Changes"
)

// RepositoryInfoProvider is satisfied by cmis.Client and by the bindings.
type RepositoryInfoProvider interface {
	RepositoryInfo(ctx context.Context) (*cmis.RepositoryInfo, error)
}

// CMISChecker verifies that the DMS is reachable and offers multifiling,
// unfiling and a change log. Answers slower than threshold are degraded.
type CMISChecker struct {
	name      string
	repo      RepositoryInfoProvider
	threshold time.Duration // 响应时间阈值
}

// NewCMISChecker 创建 DMS 检查器
func NewCMISChecker(name string, repo RepositoryInfoProvider, threshold time.Duration) *CMISChecker {
	return &CMISChecker{
		name:      name,
		repo:      repo,
		threshold: threshold,
	}
}

// Name 返回检查器名称
func (c *CMISChecker) Name() string {
	return c.name
}

// Check 执行检查
func (c *CMISChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	info, err := c.repo.RepositoryInfo(ctx)
	if err != nil {
		return result(start, fmt.Errorf("could not communicate with the DMS: %w", err), nil)
	}

	details := map[string]interface{}{
		"repository":   info.ID,
		"vendor":       info.VendorName,
		"product":      strings.TrimSpace(info.ProductName + " " + info.ProductVersion),
		"cmis_version": info.CMISVersionSupported,
	}
	if problems := CapabilityProblems(info); len(problems) > 0 {
		details["problems"] = problems
		return result(start, fmt.Errorf("%s", strings.Join(problems, "; ")), details)
	}

	r := result(start, nil, details)
	if c.threshold > 0 && r.Duration > c.threshold {
		r.Status = StatusDegraded
		r.Error = fmt.Sprintf("response time exceeds threshold: %v > %v", r.Duration, c.threshold)
	}
	return r
}

// CapabilityProblems lists the missing capabilities of a repository.
func CapabilityProblems(info *cmis.RepositoryInfo) []string {
	var problems []string
	if !enabled(info.Capability(CapabilityMultifiling)) {
		problems = append(problems, "the DMS does not support Multifiling, or it's disabled")
	}
	if !enabled(info.Capability(CapabilityUnfiling)) {
		problems = append(problems, "the DMS does not support Unfiling, or it's disabled")
	}
	if !enabled(info.Capability(CapabilityChanges)) {
		problems = append(problems, "the DMS does not support Change Log, or it's disabled")
	}
	return problems
}

func enabled(value string) bool {
	switch strings.ToLower(value) {
	case "", "false", "none":
		return false
	}
	return true
}
