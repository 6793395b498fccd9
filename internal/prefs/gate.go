package prefs

import (
	"context"

	"go.uber.org/zap"

	"NotiFlow/internal/models"
)

// Store answers preference lookups. A nil Preference with a nil error
// means no record exists for the pair.
type Store interface {
	GetPreference(ctx context.Context, userID string, channel models.Channel) (*models.Preference, error)
}

const (
	ReasonNoUserID       = "no_user_id"
	ReasonDefault        = "default_preferences"
	ReasonUserPreference = "user_preference"
	ReasonErrorFallback  = "error_fallback"
)

type Decision struct {
	ShouldSend bool   `json:"should_send"`
	Reason     string `json:"reason"`
}

// Gate decides whether a channel may be used for a user. Policy:
// absent records default to allow for everything except SMS (SMS costs
// money and is opt-in); a failed lookup fails open, since delivery
// availability outranks strict preference enforcement here.
type Gate struct {
	store Store // optional
	log   *zap.Logger
}

func NewGate(store Store, log *zap.Logger) *Gate {
	return &Gate{store: store, log: log}
}

func (g *Gate) ShouldSend(ctx context.Context, userID string, channel models.Channel) Decision {
	if userID == "" {
		return Decision{ShouldSend: channel != models.ChannelSMS, Reason: ReasonNoUserID}
	}

	if g.store == nil {
		return Decision{ShouldSend: channel != models.ChannelSMS, Reason: ReasonDefault}
	}

	pref, err := g.store.GetPreference(ctx, userID, channel)
	if err != nil {
		g.log.Warn("preference lookup failed, failing open",
			zap.String("user_id", userID),
			zap.String("channel", string(channel)),
			zap.Error(err),
		)
		return Decision{ShouldSend: true, Reason: ReasonErrorFallback}
	}

	if pref == nil {
		return Decision{ShouldSend: channel != models.ChannelSMS, Reason: ReasonDefault}
	}
	return Decision{ShouldSend: pref.Enabled, Reason: ReasonUserPreference}
}
