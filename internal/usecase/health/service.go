package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in a report.
const (
	ComponentRedis      = "redis"
	ComponentDataSource = "data_source"
	ComponentLLM        = "llm"
	ComponentHistory    = "history"
)

const checkTimeout = 5 * time.Second

// Report aggregates health check results.
type Report struct {
	Status    Status                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp time.Time              `json:"timestamp"`
}

// Service coordinates health checks.
type Service struct {
	redis   Pinger
	data    Pinger
	history Pinger
	llm     LLMChecker
	logger  *zap.Logger
}

// New creates a Service. redis and llm can be nil when not configured.
func New(redis, data Pinger, llm LLMChecker, logger *zap.Logger) *Service {
	return &Service{redis: redis, data: data, llm: llm, logger: logger}
}

// WithHistory adds the chat history database to the checks.
func (s *Service) WithHistory(history Pinger) *Service {
	s.history = history
	return s
}

// Check runs health checks against all configured components.
func (s *Service) Check(ctx context.Context) Report {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := make(map[string]CheckResult, 4)
	if s.redis != nil {
		checks[ComponentRedis] = s.result(ComponentRedis, s.redis.Ping(ctx))
	}
	checks[ComponentDataSource] = s.result(ComponentDataSource, s.data.Ping(ctx))
	if s.history != nil {
		checks[ComponentHistory] = s.result(ComponentHistory, s.history.Ping(ctx))
	}
	if s.llm != nil {
		checks[ComponentLLM] = s.result(ComponentLLM, s.llm.HealthCheck(ctx))
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{Status: status, Checks: checks, Timestamp: time.Now().UTC()}
}

func (s *Service) result(component string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("health check failed", zap.String("component", component), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
