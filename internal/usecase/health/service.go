package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component (embedding, events) failed;
	// similarity queries still run without the dense path.
	Degraded Status = "degraded"
	// Unhealthy indicates the service cannot answer queries.
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

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	index     IndexChecker
	embedding EmbeddingChecker
	events    DBPinger
}

// New creates a Service. db and index are required.
func New(db DBPinger, index IndexChecker) *Service {
	return &Service{db: db, index: index}
}

// WithEmbedding adds the embedding provider check.
func (s *Service) WithEmbedding(e EmbeddingChecker) *Service {
	s.embedding = e
	return s
}

// WithEvents adds the change-event bus check.
func (s *Service) WithEvents(p DBPinger) *Service {
	s.events = p
	return s
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	critical := false
	optional := false

	if s.db.Ping(ctx) != nil {
		checks["database"] = CheckError
		critical = true
	} else {
		checks["database"] = CheckOK
	}

	if s.index.Ready() {
		checks["lexical_index"] = CheckOK
	} else {
		checks["lexical_index"] = CheckError
		critical = true
	}

	if s.embedding != nil {
		if s.embedding.HealthCheck(ctx) != nil {
			checks["embedding"] = CheckError
			optional = true
		} else {
			checks["embedding"] = CheckOK
		}
	}

	if s.events != nil {
		if s.events.Ping(ctx) != nil {
			checks["events"] = CheckError
			optional = true
		} else {
			checks["events"] = CheckOK
		}
	}

	status := Healthy
	switch {
	case critical:
		status = Unhealthy
	case optional:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
