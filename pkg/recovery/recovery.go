// Package recovery remediates pipeline faults through an ordered strategy
// chain. Each strategy is tried once per fault; the first one that resolves
// signals the orchestrator to restart the pipeline from resource planning,
// because a fix at one stage can invalidate assumptions made earlier.
package recovery

import (
	"context"

	"luna-vmm/pkg/errors"
	"luna-vmm/pkg/log"
	"luna-vmm/pkg/models"
)

// Strategy is one remediation attempt in the chain. Recover reports whether
// the fault was resolved; a false return defers to the next strategy.
type Strategy interface {
	Name() string
	Recover(ctx context.Context, instance *models.VMInstance, fault errors.FaultKind) (bool, error)
}

type Coordinator struct {
	strategies []Strategy
}

func NewCoordinator(strategies ...Strategy) *Coordinator {
	return &Coordinator{strategies: strategies}
}

// Recover walks the chain in order and returns the name of the strategy that
// resolved the fault. An empty name means the chain is exhausted and the
// instance must be failed permanently.
func (c *Coordinator) Recover(ctx context.Context, instance *models.VMInstance, fault errors.FaultKind) (string, bool) {
	logger := log.GetLogger(ctx).WithField("vm", instance.ID).WithField("fault", string(fault))

	for _, strategy := range c.strategies {
		resolved, err := strategy.Recover(ctx, instance, fault)
		if err != nil {
			logger.WithField("strategy", strategy.Name()).Warnf("remediation failed: %s", err)

			continue
		}

		if resolved {
			logger.WithField("strategy", strategy.Name()).Info("fault resolved, retrying pipeline")

			return strategy.Name(), true
		}
	}

	logger.Warn("no recovery strategy applies")

	return "", false
}
