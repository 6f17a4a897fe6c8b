package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/auric-atelier/api/internal/domain"
)

const dependencyCheckTimeout = 1500 * time.Millisecond

// DependencyCheck is a readiness check for one backing service. Check
// functions must honour their context so a slow dependency cannot stall the
// whole report.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the dependency health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyClock injects the time source, primarily for tests.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks []DependencyCheck
	now    func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository constructs a HealthRepository evaluating the
// given checks concurrently.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	for _, check := range checks {
		if strings.TrimSpace(check.Name) == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", check.Name)
		}
	}

	repo := &dependencyHealthRepository{
		checks: append([]DependencyCheck(nil), checks...),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

type namedCheckResult struct {
	name   string
	result domain.SystemHealthCheck
}

func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if ctx == nil {
		return domain.SystemHealthReport{}, errors.New("health repository: context is required")
	}

	resultCh := make(chan namedCheckResult, len(r.checks))
	for _, check := range r.checks {
		go func(check DependencyCheck) {
			resultCh <- namedCheckResult{name: check.Name, result: r.run(ctx, check)}
		}(check)
	}

	results := make(map[string]domain.SystemHealthCheck, len(r.checks))
	status := domain.HealthStatusOK
	for range r.checks {
		res := <-resultCh
		results[res.name] = res.result
		switch res.result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.SystemHealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) run(ctx context.Context, check DependencyCheck) domain.SystemHealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = dependencyCheckTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(checkCtx)
	end := r.now()

	result := domain.SystemHealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
		result.Error = err.Error()
	case errors.Is(err, context.Canceled):
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
		result.Error = err.Error()
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
		result.Error = err.Error()
	}
	return result
}
