package detect

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	alertmodels "attest/internal/alert/models"
	"attest/internal/audit/models"
	id "attest/pkg/domain"
	"attest/pkg/platform/bus"
)

type captureRaiser struct {
	mu     sync.Mutex
	raised []alertmodels.RaiseInput
}

func (c *captureRaiser) Raise(_ context.Context, in alertmodels.RaiseInput) (alertmodels.Alert, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raised = append(c.raised, in)
	return alertmodels.Alert{AlertID: id.NewAlertID()}, nil
}

func (c *captureRaiser) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.raised)
}

type stubRule struct {
	name string
	out  *alertmodels.RaiseInput
	err  error
}

func (r stubRule) Name() string { return r.name }

func (r stubRule) Evaluate(context.Context, models.AuditEvent) (*alertmodels.RaiseInput, error) {
	return r.out, r.err
}

func TestInspectRunsAllRulesDespiteFailure(t *testing.T) {
	raiser := &captureRaiser{}
	hit := &alertmodels.RaiseInput{
		CompanyID: id.CompanyID(uuid.New()),
		Kind:      alertmodels.KindSuspiciousActivity,
		Severity:  alertmodels.SeverityHigh,
		Title:     "suspicious",
	}
	detector := New(raiser, []Rule{
		stubRule{name: "broken", err: errors.New("boom")},
		stubRule{name: "firing", out: hit},
		stubRule{name: "quiet"},
	})

	detector.Inspect(context.Background(), models.AuditEvent{EventID: id.NewEventID()})

	require.Equal(t, 1, raiser.count())
	assert.Equal(t, "suspicious", raiser.raised[0].Title)
}

func TestDetectorConsumesFromBus(t *testing.T) {
	raiser := &captureRaiser{}
	hit := &alertmodels.RaiseInput{
		CompanyID: id.CompanyID(uuid.New()),
		Kind:      alertmodels.KindSuspiciousActivity,
		Severity:  alertmodels.SeverityHigh,
		Title:     "suspicious",
	}
	detector := New(raiser, []Rule{stubRule{name: "firing", out: hit}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := bus.New[models.AuditEvent]()
	detector.Subscribe(ctx, events)
	events.Publish(ctx, models.AuditEvent{EventID: id.NewEventID()})

	require.Eventually(t, func() bool { return raiser.count() == 1 },
		time.Second, 10*time.Millisecond)
}
