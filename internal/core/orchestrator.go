package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/valter-silva-au/workpulse/pkg/models"
)

// DefaultBranchTimeout bounds one analyzer branch when no timeout is set.
const DefaultBranchTimeout = 3 * time.Minute

// ReportSink stores finished reports.
type ReportSink interface {
	Save(ctx context.Context, rep *models.Report) error
}

// Observer receives run lifecycle notifications. Branch callbacks arrive
// concurrently from the branch goroutines.
type Observer interface {
	BranchStarted(source models.SourceType)
	BranchFinished(res *models.BranchResult)
	ReportStarted(in models.RunInputs)
	RunFinished(out *models.RunOutcome)
}

type multiObserver []Observer

// Observers fans notifications out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) BranchStarted(s models.SourceType) {
	for _, o := range m {
		o.BranchStarted(s)
	}
}

func (m multiObserver) BranchFinished(r *models.BranchResult) {
	for _, o := range m {
		o.BranchFinished(r)
	}
}

func (m multiObserver) ReportStarted(in models.RunInputs) {
	for _, o := range m {
		o.ReportStarted(in)
	}
}

func (m multiObserver) RunFinished(out *models.RunOutcome) {
	for _, o := range m {
		o.RunFinished(out)
	}
}

// OrchestratorOptions carries the optional collaborators of an Orchestrator.
type OrchestratorOptions struct {
	BranchTimeout time.Duration
	Sink          ReportSink
	Observer      Observer
	Logger        *slog.Logger
}

// Orchestrator runs one daily report: it loads the plan slice, fans out to
// every analyzer branch, waits for all of them and generates the report once.
type Orchestrator struct {
	plans    PlanSource
	branches []Branch
	reports  ReportGenerator
	opts     OrchestratorOptions
	logger   *slog.Logger
}

// NewOrchestrator creates an Orchestrator. plans may be nil, in which case
// runs proceed without a plan.
func NewOrchestrator(plans PlanSource, branches []Branch, reports ReportGenerator, opts OrchestratorOptions) *Orchestrator {
	if opts.BranchTimeout <= 0 {
		opts.BranchTimeout = DefaultBranchTimeout
	}
	if opts.Observer == nil {
		opts.Observer = Observers()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{plans: plans, branches: branches, reports: reports, opts: opts, logger: logger}
}

// WithObserver returns a copy of o that also notifies obs.
func (o *Orchestrator) WithObserver(obs Observer) *Orchestrator {
	cp := *o
	cp.opts.Observer = Observers(o.opts.Observer, obs)
	return &cp
}

// Run executes the run for in. It never fails as a whole: every problem ends
// up in a branch slot, the report's error field or the error log.
func (o *Orchestrator) Run(ctx context.Context, in models.RunInputs) *models.RunOutcome {
	rc := models.NewRunContext(in)
	o.logger.Info("run started", "subject", in.SubjectID, "date", in.DateString(), "project", in.ProjectID)

	rc.Plan = o.loadPlan(ctx, rc)

	bin := BranchInput{Inputs: in, Plan: rc.Plan, Errors: &rc.Errors}
	var g errgroup.Group
	for _, b := range o.branches {
		slot := rc.Slot(b.Source())
		if slot == nil {
			rc.Errors.Append(fmt.Sprintf("no result slot for branch %q", b.Source()))
			continue
		}
		g.Go(func() error {
			*slot = o.runBranch(ctx, b, bin)
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range models.BranchSources {
		if slot := rc.Slot(s); *slot == nil {
			*slot = models.FailedBranch(s, fmt.Sprintf("no %s branch ran", s))
		}
	}

	o.opts.Observer.ReportStarted(in)
	rep := o.generate(ctx, rc)
	if rep.Success && o.opts.Sink != nil {
		if err := o.opts.Sink.Save(ctx, rep); err != nil {
			rc.Errors.Append(fmt.Sprintf("archiving report: %v", err))
			o.logger.Warn("archiving report failed", "error", err)
		}
	}

	out := &models.RunOutcome{Context: rc, Report: rep, ErrorLog: rc.Errors.String()}
	o.logger.Info("run finished", "subject", in.SubjectID, "date", in.DateString(), "success", rep.Success)
	o.opts.Observer.RunFinished(out)
	return out
}

// loadPlan fetches the subject's plan slice. Failures are logged to the run
// and yield a nil plan.
func (o *Orchestrator) loadPlan(ctx context.Context, rc *models.RunContext) *models.PlanSlice {
	in := rc.Inputs
	if in.ProjectID == "" || o.plans == nil {
		rc.Errors.Append("no project plan: project id not given")
		return nil
	}
	assignee := in.SubjectName
	if assignee == "" {
		assignee = in.SubjectID
	}
	plan, err := o.plans.PlanFor(ctx, in.ProjectID, assignee)
	if err != nil {
		rc.Errors.Append(fmt.Sprintf("[plan] %v", err))
		o.logger.Warn("plan unavailable", "project", in.ProjectID, "error", err)
		return nil
	}
	return plan
}

// runBranch runs b under its own deadline. A branch that panics or outlives
// the deadline yields an error result; a late result is dropped.
func (o *Orchestrator) runBranch(ctx context.Context, b Branch, in BranchInput) *models.BranchResult {
	source := b.Source()
	o.opts.Observer.BranchStarted(source)
	start := time.Now()

	bctx, cancel := context.WithTimeout(ctx, o.opts.BranchTimeout)
	defer cancel()

	done := make(chan *models.BranchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- models.FailedBranch(source, fmt.Sprintf("%s branch panicked: %v", source, r))
			}
		}()
		done <- b.Analyze(bctx, in)
	}()

	var res *models.BranchResult
	select {
	case res = <-done:
	case <-bctx.Done():
		err := ErrBranchTimeout
		if !errors.Is(bctx.Err(), context.DeadlineExceeded) {
			err = bctx.Err()
		}
		res = models.FailedBranch(source, fmt.Sprintf("%s: %v after %s", source, err, o.opts.BranchTimeout))
	}
	if res == nil {
		res = models.FailedBranch(source, fmt.Sprintf("%s branch returned no result", source))
	}
	res.Source = source
	res.Duration = time.Since(start)

	if !res.OK() {
		in.Errors.Append(fmt.Sprintf("[%s] %s", source, res.Err.Error))
		o.logger.Warn("branch failed", "source", string(source), "error", res.Err.Error)
	} else {
		o.logger.Debug("branch done", "source", string(source), "evidence", res.EvidenceCount, "took", res.Duration)
	}
	o.opts.Observer.BranchFinished(res)
	return res
}

// generate runs the report generator exactly once. Errors and panics become
// a failed report.
func (o *Orchestrator) generate(ctx context.Context, rc *models.RunContext) (rep *models.Report) {
	in := rc.Inputs
	fail := func(msg string) *models.Report {
		rc.Errors.Append("[report] " + msg)
		r := models.FailedReport(models.ReportDaily, in.SubjectID, in.SubjectName, msg)
		r.ProjectID = in.ProjectID
		r.PeriodStart, r.PeriodEnd = in.DateString(), in.DateString()
		return r
	}
	defer func() {
		if r := recover(); r != nil {
			rep = fail(fmt.Sprintf("report generation panicked: %v", r))
		}
	}()

	if o.reports == nil {
		return fail("no report generator configured")
	}
	rep, err := o.reports.Generate(ctx, rc)
	if err != nil {
		return fail(err.Error())
	}
	if rep == nil {
		return fail("report generator returned no report")
	}
	return rep
}
