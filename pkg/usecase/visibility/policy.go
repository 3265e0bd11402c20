package visibility

import (
	"strconv"
	"strings"
	"time"

	"github.com/elelem/visibility/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Step is one persistence write of the pipeline
type Step string

const (
	StepIndex   Step = "index"
	StepStatus  Step = "status"
	StepHistory Step = "history"
)

// persistOrder is the fixed write order
var persistOrder = []Step{StepIndex, StepStatus, StepHistory}

// FailureMode decides what a failed step does to the rest of the pipeline
type FailureMode string

const (
	// ModeFatal stops the remaining steps and returns the error
	ModeFatal FailureMode = "fatal"
	// ModeSoft records the failure in the outcome and continues
	ModeSoft FailureMode = "soft"
)

const defaultRetryInterval = 500 * time.Millisecond

// StepPolicy is the failure classification of one step. Attempts above one retry the write
// before Mode applies.
type StepPolicy struct {
	Mode     FailureMode
	Attempts int
	Interval time.Duration
}

func FatalPolicy() StepPolicy {
	return StepPolicy{Mode: ModeFatal, Attempts: 1}
}

func SoftPolicy() StepPolicy {
	return StepPolicy{Mode: ModeSoft, Attempts: 1}
}

// RetryPolicy retries a failing write up to attempts times, waiting interval in between,
// and then applies mode
func RetryPolicy(attempts int, interval time.Duration, mode FailureMode) StepPolicy {
	return StepPolicy{Mode: mode, Attempts: attempts, Interval: interval}
}

func (p StepPolicy) Validate() error {
	if p.Mode != ModeFatal && p.Mode != ModeSoft {
		return goerr.Wrap(model.ErrInvalidConfig, "unknown failure mode", goerr.V("mode", p.Mode))
	}
	if p.Attempts < 1 {
		return goerr.Wrap(model.ErrInvalidConfig, "attempts must be at least 1", goerr.V("attempts", p.Attempts))
	}
	if p.Interval < 0 {
		return goerr.Wrap(model.ErrInvalidConfig, "interval must not be negative", goerr.V("interval", p.Interval))
	}
	return nil
}

func (p StepPolicy) String() string {
	if p.Attempts > 1 {
		return "retry:" + strconv.Itoa(p.Attempts) + ":" + string(p.Mode)
	}
	return string(p.Mode)
}

// ParseStepPolicy reads "fatal", "soft" or "retry:N[:fatal|soft]". A retry without a
// trailing mode is fatal once attempts run out.
func ParseStepPolicy(s string) (StepPolicy, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), ":")

	switch parts[0] {
	case string(ModeFatal):
		if len(parts) == 1 {
			return FatalPolicy(), nil
		}
	case string(ModeSoft):
		if len(parts) == 1 {
			return SoftPolicy(), nil
		}
	case "retry":
		if len(parts) < 2 || len(parts) > 3 {
			break
		}
		attempts, err := strconv.Atoi(parts[1])
		if err != nil {
			return StepPolicy{}, goerr.Wrap(model.ErrInvalidConfig, "invalid retry attempts", goerr.V("policy", s))
		}
		mode := ModeFatal
		if len(parts) == 3 {
			mode = FailureMode(parts[2])
		}
		p := RetryPolicy(attempts, defaultRetryInterval, mode)
		if err := p.Validate(); err != nil {
			return StepPolicy{}, err
		}
		return p, nil
	}

	return StepPolicy{}, goerr.Wrap(model.ErrInvalidConfig, "invalid step policy", goerr.V("policy", s))
}

func defaultPolicies() map[Step]StepPolicy {
	return map[Step]StepPolicy{
		StepIndex:   FatalPolicy(),
		StepStatus:  FatalPolicy(),
		StepHistory: FatalPolicy(),
	}
}

// DefaultHistoryPolicy returns the history step policy of a deployment environment. The cloud
// analytics sink is best effort while the local relational sink is required.
func DefaultHistoryPolicy(env model.Environment) StepPolicy {
	if env == model.EnvironmentCloud {
		return SoftPolicy()
	}
	return FatalPolicy()
}
