// Package health aggregates store, embedding provider and primary collection checks.
package health

import (
	"context"

	"go.uber.org/zap"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates retrieval still works with reduced quality.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is down.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names used as Report.Checks keys.
const (
	CheckDatabase   = "database"
	CheckEmbedding  = "embedding"
	CheckCollection = "primary_collection"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	embedding EmbeddingChecker
	colls     CollectionGetter
	primary   string
	logger    *zap.Logger
}

// New creates a Service. embedding can be nil.
func New(db DBPinger, embedding EmbeddingChecker, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, embedding: embedding, logger: logger}
}

// WithPrimaryCollection adds a check that the named collection exists.
func (s *Service) WithPrimaryCollection(colls CollectionGetter, name string) *Service {
	s.colls = colls
	s.primary = name
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	checks[CheckDatabase] = s.run(CheckDatabase, s.db.Ping(ctx))
	if s.embedding != nil {
		checks[CheckEmbedding] = s.run(CheckEmbedding, s.embedding.HealthCheck(ctx))
	}
	if s.colls != nil && checks[CheckDatabase] == CheckOK {
		_, err := s.colls.Get(ctx, s.primary)
		checks[CheckCollection] = s.run(CheckCollection, err)
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[CheckDatabase] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks}
}

func (s *Service) run(name string, err error) CheckResult {
	if err != nil {
		s.logger.Warn("Health check failed", zap.String("component", name), zap.Error(err))
		return CheckError
	}
	return CheckOK
}
