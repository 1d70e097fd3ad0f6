// Package jobs runs periodic maintenance against the order engine.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/masapos/api/internal/activity"
	"github.com/masapos/api/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultSweepTimeout = time.Minute

// Reconciler is satisfied by *service.Engine.
type Reconciler interface {
	ReconcileAllTables(ctx context.Context, actor activity.Actor) (*service.ReconcileReport, error)
}

// ReconcileJob rewrites any table status that disagrees with its orders.
type ReconcileJob struct {
	engine  Reconciler
	timeout time.Duration
}

func NewReconcileJob(engine Reconciler) *ReconcileJob {
	return &ReconcileJob{engine: engine, timeout: defaultSweepTimeout}
}

// Run implements cron.Job.
func (j *ReconcileJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.engine.ReconcileAllTables(ctx, activity.System)
	if err != nil {
		logrus.WithError(err).Error("table reconcile sweep failed")
		return
	}

	entry := logrus.WithFields(logrus.Fields{
		"checked":   report.Checked,
		"corrected": len(report.Corrected),
	})
	for _, w := range report.Warnings {
		entry.Warn(w)
	}
	if len(report.Corrected) > 0 {
		entry.Warn("table reconcile sweep corrected drifted tables")
		return
	}
	entry.Debug("table reconcile sweep finished")
}

// Schedule starts job on the given cron expression. Overlapping runs are skipped.
// The caller stops the returned scheduler on shutdown.
func Schedule(expr string, job cron.Job) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddJob(expr, job); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", expr, err)
	}
	c.Start()
	return c, nil
}
