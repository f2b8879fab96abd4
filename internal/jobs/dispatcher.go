// Package jobs runs consolidation jobs in the background and records their
// status. Submissions for a job id that is already running join that run.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/model"
	"github.com/Bay-State-Pet-and-Garden-Supply/BayStateConsolidator/internal/pipeline"
)

// Runner executes one consolidation batch.
type Runner interface {
	Run(ctx context.Context, ro pipeline.RunOptions) (*model.RunResult, error)
}

// Store records job status. store.Store satisfies it.
type Store interface {
	CreateJob(ctx context.Context, jobID string) (*model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
}

// Result is delivered once a submitted job finishes.
type Result struct {
	Run    *model.RunResult
	Err    error
	Shared bool // another submission ran the job
}

// Dispatcher runs jobs on background goroutines bound to a base context.
type Dispatcher struct {
	runner  Runner
	store   Store
	base    context.Context
	timeout time.Duration

	group singleflight.Group
	wg    sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Jobs are cancelled when base is done.
// A positive timeout bounds each job.
func NewDispatcher(base context.Context, runner Runner, store Store, timeout time.Duration) *Dispatcher {
	return &Dispatcher{runner: runner, store: store, base: base, timeout: timeout}
}

// Submit starts jobID unless it is already running, in which case the
// caller joins the running job. It never blocks on the job itself.
func (d *Dispatcher) Submit(jobID string) <-chan Result {
	out := make(chan Result, 1)
	ch := d.group.DoChan(jobID, func() (any, error) {
		return d.run(jobID)
	})

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		r := <-ch
		res, _ := r.Val.(*model.RunResult)
		out <- Result{Run: res, Err: r.Err, Shared: r.Shared}
		close(out)
	}()
	return out
}

// Get returns the recorded status of a job.
func (d *Dispatcher) Get(ctx context.Context, jobID string) (*model.Job, error) {
	return d.store.GetJob(ctx, jobID)
}

// Wait blocks until every submitted job has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(jobID string) (*model.RunResult, error) {
	ctx := d.base
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	log := zap.L().With(zap.String("component", "jobs"), zap.String("job_id", jobID))

	job, err := d.store.CreateJob(ctx, jobID)
	if err != nil {
		log.Warn("jobs: create job record failed", zap.Error(err))
		job = &model.Job{ID: jobID, Status: model.JobStatusProcessing}
	}
	log.Info("jobs: started")

	res, runErr := d.runner.Run(ctx, pipeline.RunOptions{JobID: jobID})
	if runErr == nil && res == nil {
		res = &model.RunResult{JobID: jobID}
	}

	if runErr != nil {
		job.Status = model.JobStatusFailed
		job.Error = runErr.Error()
		log.Error("jobs: failed", zap.Error(runErr))
	} else {
		job.Status = model.JobStatusCompleted
		job.Error = ""
		job.Fetched = res.Fetched
		job.Clusters = res.Clusters
		job.Golden = len(res.Golden)
		log.Info("jobs: completed",
			zap.Int("fetched", res.Fetched),
			zap.Int("clusters", res.Clusters),
			zap.Int("golden", len(res.Golden)),
		)
	}

	// Status is written even when the job context expired.
	statusCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.store.UpdateJob(statusCtx, job); err != nil {
		log.Warn("jobs: update job record failed", zap.Error(err))
	}

	if runErr != nil {
		return nil, eris.Wrapf(runErr, "jobs: run %s", jobID)
	}
	return res, nil
}
