package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"NotiFlow/internal/models"
	"NotiFlow/internal/notification"
	"NotiFlow/internal/prefs"
	"NotiFlow/internal/queue"
	"NotiFlow/internal/sender"
	"NotiFlow/internal/template"
	"NotiFlow/internal/transport"
)

type fakeTransport struct {
	name  string
	err   error
	calls int
	last  *models.Message
}

func (f *fakeTransport) Name() string { return f.name }

func (f *fakeTransport) Send(_ context.Context, msg *models.Message) (string, error) {
	f.calls++
	f.last = msg
	if f.err != nil {
		return "", f.err
	}
	return f.name + "-id-1", nil
}

func (f *fakeTransport) Health(_ context.Context) error { return f.err }

type fakePrefStore struct {
	pref *models.Preference
	err  error
}

func (f *fakePrefStore) GetPreference(_ context.Context, _ string, _ models.Channel) (*models.Preference, error) {
	return f.pref, f.err
}

type fakeAuditStore struct {
	created []*models.Notification
	logs    []*models.NotificationLog
	updates []models.NotificationStatus
}

func (f *fakeAuditStore) CreateNotification(_ context.Context, n *models.Notification) error {
	f.created = append(f.created, n)
	return nil
}

func (f *fakeAuditStore) AppendLog(_ context.Context, l *models.NotificationLog) error {
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeAuditStore) UpdateNotificationStatus(_ context.Context, _ string, status models.NotificationStatus, _ *time.Time) error {
	f.updates = append(f.updates, status)
	return nil
}

type fixture struct {
	dispatcher *Dispatcher
	email      *fakeTransport
	sms        *fakeTransport
	audit      *fakeAuditStore
}

func newFixture(t *testing.T, prefStore prefs.Store) *fixture {
	t.Helper()

	log := zap.NewNop()
	email := &fakeTransport{name: "smtp"}
	sms := &fakeTransport{name: "sms-gateway"}
	audit := &fakeAuditStore{}

	chains := map[models.Channel]*sender.Chain{
		models.ChannelEmail: sender.NewChain(models.ChannelEmail, []transport.Transport{email}, false, log),
		models.ChannelSMS:   sender.NewChain(models.ChannelSMS, []transport.Transport{sms}, false, log),
	}

	d := New(
		template.NewRenderer(nil, t.TempDir(), log),
		chains,
		prefs.NewGate(prefStore, log),
		notification.NewSink(audit, log),
		log,
	)
	return &fixture{dispatcher: d, email: email, sms: sms, audit: audit}
}

func TestSendUserTemplateAuditsAndDelivers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	res := f.dispatcher.Send(context.Background(), SendRequest{
		Channel:  models.ChannelEmail,
		UserID:   "u1",
		To:       "a@x.com",
		Template: "welcome",
		Data:     map[string]interface{}{"name": "Ada"},
	})

	require.True(t, res.Success)
	assert.Equal(t, "smtp", res.Provider)
	assert.NotEmpty(t, res.NotificationID)

	require.Len(t, f.audit.created, 1)
	assert.Equal(t, "u1", f.audit.created[0].UserID)
	assert.Equal(t, "welcome", f.audit.created[0].TemplateRef)
	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "smtp", f.audit.logs[0].Provider)
	require.Len(t, f.audit.updates, 1)
	assert.Equal(t, models.NotificationSent, f.audit.updates[0])

	require.NotNil(t, f.email.last)
	assert.Contains(t, f.email.last.HTML, "Ada")
}

func TestSendSystemTemplateSkipsAudit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	res := f.dispatcher.Send(context.Background(), SendRequest{
		Channel:  models.ChannelEmail,
		UserID:   "u1",
		To:       "a@x.com",
		Template: "password-reset",
		Data:     map[string]interface{}{"resetUrl": "https://x/r"},
	})

	require.True(t, res.Success)
	assert.Empty(t, res.NotificationID)
	assert.Empty(t, f.audit.created)
	assert.Empty(t, f.audit.logs)
	assert.Equal(t, 1, f.email.calls)
}

func TestSendPreferenceDenied(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{pref: &models.Preference{
		UserID: "u1", Channel: models.ChannelEmail, Enabled: false,
	}})

	res := f.dispatcher.Send(context.Background(), SendRequest{
		Channel:  models.ChannelEmail,
		UserID:   "u1",
		To:       "a@x.com",
		Template: "welcome",
	})

	assert.True(t, res.Skipped)
	assert.Equal(t, prefs.ReasonUserPreference, res.Reason)
	assert.Equal(t, 0, f.email.calls)
	assert.Empty(t, f.audit.created)
}

func TestSendProviderFailureMarksFailed(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})
	f.email.err = errors.New("connection refused")

	res := f.dispatcher.Send(context.Background(), SendRequest{
		Channel:  models.ChannelEmail,
		UserID:   "u1",
		To:       "a@x.com",
		Template: "welcome",
	})

	require.False(t, res.Success)
	assert.Contains(t, res.Error, "all providers failed")
	require.Len(t, f.audit.updates, 1)
	assert.Equal(t, models.NotificationFailed, f.audit.updates[0])
}

func TestSendSubjectOverride(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	res := f.dispatcher.Send(context.Background(), SendRequest{
		Channel:  models.ChannelEmail,
		UserID:   "u1",
		To:       "a@x.com",
		Template: "welcome",
		Subject:  "Custom subject",
	})

	require.True(t, res.Success)
	require.NotNil(t, f.email.last)
	assert.Equal(t, "Custom subject", f.email.last.Subject)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	tests := []struct {
		name string
		req  SendRequest
	}{
		{"bad channel", SendRequest{Channel: "fax", To: "a@x.com", Template: "welcome"}},
		{"missing recipient", SendRequest{Channel: models.ChannelEmail, Template: "welcome"}},
		{"missing template", SendRequest{Channel: models.ChannelEmail, To: "a@x.com"}},
		{"unconfigured channel", SendRequest{Channel: models.ChannelPush, To: "tok", Template: "welcome"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Error(t, f.dispatcher.Validate(tt.req))
		})
	}
}

func TestProcessEmailJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	job := &models.Job{
		ID:   "j1",
		Lane: models.LaneEmail,
		Type: models.JobWelcome,
		Payload: models.JobPayload{
			UserID: "u1",
			To:     "a@x.com",
			Data:   map[string]interface{}{"name": "Ada"},
		},
	}

	require.NoError(t, f.dispatcher.ProcessEmailJob(context.Background(), job))
	assert.Equal(t, 1, f.email.calls)
}

func TestProcessEmailJobTransportFailureIsRetryable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})
	f.email.err = errors.New("connection refused")

	job := &models.Job{
		ID:      "j1",
		Lane:    models.LaneEmail,
		Type:    models.JobTransactional,
		Payload: models.JobPayload{To: "a@x.com", Template: "welcome"},
	}

	err := f.dispatcher.ProcessEmailJob(context.Background(), job)
	require.Error(t, err)
	assert.NotErrorIs(t, err, queue.ErrPermanent)
}

func TestProcessEmailJobRejectsBulkType(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	job := &models.Job{ID: "j1", Lane: models.LaneEmail, Type: models.JobBulkEmail}
	err := f.dispatcher.ProcessEmailJob(context.Background(), job)
	assert.ErrorIs(t, err, queue.ErrPermanent)
}

func TestProcessEmailJobBadShapeIsPermanent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakePrefStore{})

	// No recipient: fails validation, never retried.
	job := &models.Job{ID: "j1", Lane: models.LaneEmail, Type: models.JobWelcome}
	err := f.dispatcher.ProcessEmailJob(context.Background(), job)
	assert.ErrorIs(t, err, queue.ErrPermanent)
}

func TestProcessSMSJobPreferenceDenialCompletes(t *testing.T) {
	t.Parallel()

	// SMS default policy denies without an explicit opt-in.
	f := newFixture(t, &fakePrefStore{})

	job := &models.Job{
		ID:      "j1",
		Lane:    models.LaneSMS,
		Type:    models.JobOtp,
		Payload: models.JobPayload{UserID: "u1", To: "+15550001111", Data: map[string]interface{}{"code": "1234"}},
	}

	require.NoError(t, f.dispatcher.ProcessSMSJob(context.Background(), job))
	assert.Equal(t, 0, f.sms.calls)
}

func TestTemplateForType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "welcome", templateForType(models.JobWelcome, models.JobPayload{}))
	assert.Equal(t, "password-reset", templateForType(models.JobPasswordReset, models.JobPayload{}))
	assert.Equal(t, "otp", templateForType(models.JobOtp, models.JobPayload{}))
	assert.Equal(t, "event-confirmation", templateForType(models.JobEventConfirmation, models.JobPayload{}))
	assert.Equal(t, "receipt", templateForType(models.JobTransactional, models.JobPayload{Template: "receipt"}))
	assert.Equal(t, "transactional", templateForType(models.JobTransactional, models.JobPayload{}))
}

func TestMergeData(t *testing.T) {
	t.Parallel()

	base := map[string]interface{}{"a": 1, "b": 2}
	overlay := map[string]interface{}{"b": 3, "c": 4}

	merged := mergeData(base, overlay)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3, "c": 4}, merged)
	assert.Equal(t, 2, base["b"], "base must not be mutated")

	same := mergeData(base, nil)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, same)
}
