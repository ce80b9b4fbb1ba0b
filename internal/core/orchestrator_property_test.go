package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/valter-silva-au/workpulse/pkg/models"
	"pgregory.net/rapid"
)

// =============================================================================
// Generators
// =============================================================================

type branchBehavior int

const (
	behaveOK branchBehavior = iota
	behaveError
	behavePanic
	behaveHang
)

func genBranch(t *rapid.T, source models.SourceType) Branch {
	behavior := branchBehavior(rapid.IntRange(0, 3).Draw(t, "behavior_"+string(source)))
	delay := time.Duration(rapid.IntRange(0, 5).Draw(t, "delay_"+string(source))) * time.Millisecond
	return funcBranch{source: source, fn: func(ctx context.Context, in BranchInput) *models.BranchResult {
		time.Sleep(delay)
		switch behavior {
		case behaveError:
			in.Errors.Append(fmt.Sprintf("[%s] retrieving: unreachable", source))
			return models.FailedBranch(source, "judgment failed")
		case behavePanic:
			panic("branch exploded")
		case behaveHang:
			<-ctx.Done()
			time.Sleep(time.Millisecond)
			return &models.BranchResult{Judgment: map[string]any{"late": true}}
		}
		return &models.BranchResult{Judgment: map[string]any{"source": string(source)}}
	}}
}

// =============================================================================
// Properties
// =============================================================================

// *For any* mix of branch delays and outcomes, every slot is filled exactly
// by its own branch, each with a judgment or an error but not both, and the
// report generator runs exactly once after the join.
func TestOrchestratorProperty_FanOutFanInCompleteness(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var branches []Branch
		for _, s := range models.BranchSources {
			branches = append(branches, genBranch(rt, s))
		}
		gen := &mockReportGenerator{fn: func(rc *models.RunContext) (*models.Report, error) {
			for _, s := range models.BranchSources {
				if *rc.Slot(s) == nil {
					return nil, fmt.Errorf("slot %s empty at report time", s)
				}
			}
			return &models.Report{Kind: models.ReportDaily, Success: true}, nil
		}}
		o := NewOrchestrator(stubPlans{plan: testPlan()}, branches, gen, OrchestratorOptions{BranchTimeout: 20 * time.Millisecond})

		out := o.Run(context.Background(), runInputs())

		if gen.calls != 1 {
			rt.Fatalf("report generator called %d times", gen.calls)
		}
		if !out.Report.Success {
			rt.Fatalf("report failed: %s", out.Report.Error)
		}
		for _, s := range models.BranchSources {
			res := *out.Context.Slot(s)
			if res == nil {
				rt.Fatalf("slot %s empty", s)
			}
			if res.Source != s {
				rt.Fatalf("slot %s holds result of %s", s, res.Source)
			}
			if (res.Err == nil) == (res.Judgment == nil) {
				rt.Fatalf("slot %s must hold exactly one of judgment and error: %+v", s, res)
			}
			if res.Err != nil && res.Err.Type != s {
				rt.Fatalf("slot %s error typed %s", s, res.Err.Type)
			}
			if res.Judgment != nil && res.Judgment["late"] == true {
				rt.Fatalf("slot %s kept a late result", s)
			}
		}
	})
}
