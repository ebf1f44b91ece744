// Package health polls the workload readiness probe inside the VM. This is the
// only suspension point in the synchronous ensure-ready path; it is bounded by
// the configured wait budget and aborts promptly on context cancellation.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/log"
)

const readyStatus = "ready"

type probeResponse struct {
	Status string `json:"status"`
}

type Monitor struct {
	client   *http.Client
	interval time.Duration
	maxWait  time.Duration
}

func New(interval, maxWait time.Duration) *Monitor {
	return &Monitor{
		client:   &http.Client{Timeout: interval},
		interval: interval,
		maxWait:  maxWait,
	}
}

// WaitUntilReady polls GET {endpoint}/health every interval until the probe
// reports ready. Per-poll failures (connection refused, non-200, non-ready
// payload) are swallowed and retried; only the elapsed wait budget is a hard
// failure.
func (m *Monitor) WaitUntilReady(ctx context.Context, endpoint string) error {
	logger := log.GetLogger(ctx).WithField("endpoint", endpoint)

	deadline := time.NewTimer(m.maxWait)
	defer deadline.Stop()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if m.probe(ctx, endpoint) {
			logger.Debug("readiness probe succeeded")

			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errors.HealthTimeoutError{
				Endpoint: endpoint,
				Waited:   m.maxWait.String(),
			}
		case <-ticker.C:
		}
	}
}

func (m *Monitor) probe(ctx context.Context, endpoint string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/health", endpoint), nil)
	if err != nil {
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	payload := probeResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}

	return payload.Status == readyStatus
}
