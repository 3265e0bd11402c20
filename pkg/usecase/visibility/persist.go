package visibility

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/elelem/visibility/pkg/model"
	"github.com/elelem/visibility/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// StepState is the result of one persistence step
type StepState string

const (
	StepOK StepState = "ok"
	// StepAnomaly is an expected miss, such as a status record that does not exist
	StepAnomaly  StepState = "anomaly"
	StepSoftFail StepState = "soft_fail"
	StepFatal    StepState = "fatal"
	// StepSkipped means an earlier fatal step stopped the pipeline
	StepSkipped StepState = "skipped"
)

type StepResult struct {
	Step     Step      `json:"step"`
	Status   StepState `json:"status"`
	Attempts int       `json:"attempts"`
	Err      error     `json:"-"`
	Message  string    `json:"error,omitempty"`
}

// Outcome is the report of one pipeline run
type Outcome struct {
	ResponseID model.ResponseID `json:"response_id"`
	BrandName  string           `json:"brand_name"`
	Score      float64          `json:"visibility_score"`
	Features   model.FeatureSet `json:"features"`
	Keywords   []string         `json:"keywords"`
	Steps      []StepResult     `json:"steps"`
}

// Succeeded is true when no step failed fatally
func (o *Outcome) Succeeded() bool {
	for _, s := range o.Steps {
		if s.Status == StepFatal || s.Status == StepSkipped {
			return false
		}
	}
	return true
}

// HistoryRecorded is true when the historical sink accepted the row
func (o *Outcome) HistoryRecorded() bool {
	r := o.Step(StepHistory)
	return r != nil && r.Status == StepOK
}

// Step returns the result of one step, or nil if it is not in the report
func (o *Outcome) Step(step Step) *StepResult {
	for i := range o.Steps {
		if o.Steps[i].Step == step {
			return &o.Steps[i]
		}
	}
	return nil
}

// isAnomaly tells errors that mean the target is absent or already written. They are never
// retried and never abort the pipeline.
func isAnomaly(step Step, err error) bool {
	switch step {
	case StepStatus:
		return errors.Is(err, model.ErrRecordNotFound) || errors.Is(err, model.ErrInvalidIdentifier)
	case StepHistory:
		return errors.Is(err, model.ErrDuplicateHistory)
	}
	return false
}

func (u *UseCase) persist(ctx context.Context, record *model.AnalysisRecord, rawText string) (*Outcome, error) {
	outcome := &Outcome{
		ResponseID: record.ResponseID,
		BrandName:  record.BrandName,
		Score:      record.VisibilityScore,
		Features:   record.Features,
		Keywords:   record.Keywords,
	}

	writers := map[Step]func(context.Context) error{
		StepIndex: func(ctx context.Context) error {
			return u.stores.Index.Upsert(ctx, record.IndexDocument())
		},
		StepStatus: func(ctx context.Context) error {
			return u.stores.Status.UpdateComplete(ctx, record.ResponseID, record.VisibilityScore)
		},
		StepHistory: func(ctx context.Context) error {
			return u.stores.Sink.Write(ctx, record, rawText)
		},
	}

	var fatalErr error
	for _, step := range persistOrder {
		if fatalErr != nil {
			outcome.Steps = append(outcome.Steps, StepResult{Step: step, Status: StepSkipped})
			continue
		}

		result := u.runStep(ctx, step, writers[step])
		outcome.Steps = append(outcome.Steps, result)
		if result.Status == StepFatal {
			fatalErr = goerr.Wrap(result.Err, "persistence step failed",
				goerr.V("step", step),
				goerr.V("response_id", record.ResponseID))
		}
	}

	return outcome, fatalErr
}

func (u *UseCase) runStep(ctx context.Context, step Step, write func(context.Context) error) StepResult {
	logger := logging.From(ctx).With("step", step)
	policy := u.policies[step]

	var attempts int
	op := func() (struct{}, error) {
		attempts++
		err := write(ctx)
		if err != nil && isAnomaly(step, err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if policy.Interval > 0 {
		b = backoff.NewConstantBackOff(policy.Interval)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(policy.Attempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("retry persistence step", "error", err, "attempt", attempts, "next", next)
		}),
	)
	// the last try returns a permanent error without unwrapping it
	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}

	result := StepResult{Step: step, Attempts: attempts, Err: err}
	if err != nil {
		result.Message = err.Error()
	}
	switch {
	case err == nil:
		result.Status = StepOK
		logger.Debug("persistence step done", "attempts", attempts)
	case isAnomaly(step, err):
		result.Status = StepAnomaly
		logger.Warn("persistence step anomaly", "error", err)
	case policy.Mode == ModeSoft:
		result.Status = StepSoftFail
		logger.Warn("persistence step failed softly", "error", err, "attempts", attempts)
	default:
		result.Status = StepFatal
		logger.Error("persistence step failed", "error", err, "attempts", attempts)
	}

	return result
}
