package events

import "context"

// Streams
const (
	StreamLedger    = "events:ledger"
	StreamCampaigns = "events:campaigns"
)

// Event types
const (
	EventSubmissionVerified    = "submission_verified"
	EventSubmissionRejected    = "submission_rejected"
	EventPayoutRequested       = "payout_requested"
	EventPayoutResolved        = "payout_resolved"
	EventCampaignStatusChanged = "campaign_status_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

// ParticipantID returns the participant an event concerns, if any.
func (e Event) ParticipantID() string {
	id, _ := e.Payload["participant_id"].(string)
	return id
}

func (e Event) SponsorID() string {
	id, _ := e.Payload["sponsor_id"].(string)
	return id
}

// Recipient is the account a live update belongs to: the participant when
// set, the sponsor otherwise.
func (e Event) Recipient() string {
	if id := e.ParticipantID(); id != "" {
		return id
	}
	return e.SponsorID()
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
