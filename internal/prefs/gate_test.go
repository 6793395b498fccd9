package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"NotiFlow/internal/models"
)

type fakeStore struct {
	pref *models.Preference
	err  error
}

func (f *fakeStore) GetPreference(_ context.Context, _ string, _ models.Channel) (*models.Preference, error) {
	return f.pref, f.err
}

func TestGateDefaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		store      Store
		userID     string
		channel    models.Channel
		wantSend   bool
		wantReason string
	}{
		{
			name:       "no user id allows email",
			store:      &fakeStore{},
			userID:     "",
			channel:    models.ChannelEmail,
			wantSend:   true,
			wantReason: ReasonNoUserID,
		},
		{
			name:       "no user id denies sms",
			store:      &fakeStore{},
			userID:     "",
			channel:    models.ChannelSMS,
			wantSend:   false,
			wantReason: ReasonNoUserID,
		},
		{
			name:       "no record allows email",
			store:      &fakeStore{},
			userID:     "u1",
			channel:    models.ChannelEmail,
			wantSend:   true,
			wantReason: ReasonDefault,
		},
		{
			name:       "no record denies sms",
			store:      &fakeStore{},
			userID:     "u1",
			channel:    models.ChannelSMS,
			wantSend:   false,
			wantReason: ReasonDefault,
		},
		{
			name:       "no record allows push",
			store:      &fakeStore{},
			userID:     "u1",
			channel:    models.ChannelPush,
			wantSend:   true,
			wantReason: ReasonDefault,
		},
		{
			name:       "explicit record wins",
			store:      &fakeStore{pref: &models.Preference{UserID: "u1", Channel: models.ChannelEmail, Enabled: false}},
			userID:     "u1",
			channel:    models.ChannelEmail,
			wantSend:   false,
			wantReason: ReasonUserPreference,
		},
		{
			name:       "explicit sms opt-in wins",
			store:      &fakeStore{pref: &models.Preference{UserID: "u1", Channel: models.ChannelSMS, Enabled: true}},
			userID:     "u1",
			channel:    models.ChannelSMS,
			wantSend:   true,
			wantReason: ReasonUserPreference,
		},
		{
			name:       "lookup error fails open even for sms",
			store:      &fakeStore{err: errors.New("db unavailable")},
			userID:     "u1",
			channel:    models.ChannelSMS,
			wantSend:   true,
			wantReason: ReasonErrorFallback,
		},
		{
			name:       "nil store applies default policy",
			store:      nil,
			userID:     "u1",
			channel:    models.ChannelEmail,
			wantSend:   true,
			wantReason: ReasonDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gate := NewGate(tt.store, zap.NewNop())
			d := gate.ShouldSend(context.Background(), tt.userID, tt.channel)

			assert.Equal(t, tt.wantSend, d.ShouldSend)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}
