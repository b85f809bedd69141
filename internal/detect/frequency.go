package detect

import (
	"context"
	"fmt"
	"time"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
	id "attest/pkg/domain"
)

const (
	DefaultAccessThreshold = 50
	DefaultAccessWindow    = time.Hour
	DefaultLatchCooldown   = time.Hour
)

// FrequencyRule flags users whose access volume exceeds a threshold within a
// sliding window. One breach raises exactly one alert: the latch stays set
// until activity falls back under the threshold, then the rule re-arms.
type FrequencyRule struct {
	windows   WindowStore
	threshold int64
	window    time.Duration
	cooldown  time.Duration
}

type FrequencyOption func(*FrequencyRule)

func WithThreshold(n int) FrequencyOption {
	return func(r *FrequencyRule) {
		if n > 0 {
			r.threshold = int64(n)
		}
	}
}

func WithWindow(d time.Duration) FrequencyOption {
	return func(r *FrequencyRule) {
		if d > 0 {
			r.window = d
		}
	}
}

func WithCooldown(d time.Duration) FrequencyOption {
	return func(r *FrequencyRule) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

func NewFrequencyRule(windows WindowStore, opts ...FrequencyOption) *FrequencyRule {
	r := &FrequencyRule{
		windows:   windows,
		threshold: DefaultAccessThreshold,
		window:    DefaultAccessWindow,
		cooldown:  DefaultLatchCooldown,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *FrequencyRule) Name() string { return "excessive_access" }

func (r *FrequencyRule) Evaluate(ctx context.Context, event models.AuditEvent) (*alertmodels.RaiseInput, error) {
	if event.EventType != models.EventTypeAccess || event.UserID.IsNil() {
		return nil, nil
	}

	key := fmt.Sprintf("freq:%s:%s", event.CompanyID, event.UserID)
	count, err := r.windows.Add(ctx, key, event.Timestamp, r.window)
	if err != nil {
		return nil, fmt.Errorf("count access window: %w", err)
	}

	if count <= r.threshold {
		// Back under the line: clear the latch so the next breach alerts.
		if err := r.windows.Unlatch(ctx, key); err != nil {
			return nil, fmt.Errorf("re-arm frequency latch: %w", err)
		}
		return nil, nil
	}

	acquired, err := r.windows.TryLatch(ctx, key, r.cooldown)
	if err != nil {
		return nil, fmt.Errorf("acquire frequency latch: %w", err)
	}
	if !acquired {
		return nil, nil
	}

	return &alertmodels.RaiseInput{
		CompanyID:   event.CompanyID,
		Kind:        alertmodels.KindSuspiciousActivity,
		Rule:        r.Name(),
		Severity:    alertmodels.SeverityHigh,
		Title:       "Excessive access activity",
		Description: fmt.Sprintf("user performed %d access events within %s, threshold is %d", count, r.window, r.threshold),
		UserID:      event.UserID,
		EventIDs:    []id.EventID{event.EventID},
		Details: map[string]any{
			"count":     count,
			"threshold": r.threshold,
			"windowSec": int64(r.window.Seconds()),
		},
	}, nil
}
