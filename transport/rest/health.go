package rest

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 3 * time.Second

// Checker reports whether a dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

type CheckerFunc func(ctx context.Context) error

func (that CheckerFunc) Check(ctx context.Context) error {
	return that(ctx)
}

func (that *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type result struct {
		Status string `json:"status"`
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	checks := make(map[string]result, len(that.checker))
	status := http.StatusOK

	for name, checker := range that.checker {
		if err := checker.Check(ctx); err != nil {
			that.logger.Error("health check failed", "name", name, "error", err)
			checks[name] = result{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}

		checks[name] = result{Status: "ok"}
	}

	writeJSON(w, status, checks)
}
