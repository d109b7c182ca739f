package jobs

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/apperr"
)

type VerificationJob struct {
	SubmissionID uuid.UUID `json:"submissionId"`
}

type PayoutJob struct {
	PayoutID uuid.UUID `json:"payoutId"`
}

// Enqueuer is the producer side used by the API.
type Enqueuer struct {
	queue Queue
}

func NewEnqueuer(queue Queue) *Enqueuer {
	return &Enqueuer{queue: queue}
}

func (e *Enqueuer) EnqueueVerification(ctx context.Context, submissionID uuid.UUID) error {
	return e.push(ctx, QueueVerification, VerificationJob{SubmissionID: submissionID})
}

func (e *Enqueuer) EnqueuePayout(ctx context.Context, payoutID uuid.UUID) error {
	return e.push(ctx, QueuePayouts, PayoutJob{PayoutID: payoutID})
}

func (e *Enqueuer) push(ctx context.Context, queue string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return e.queue.Push(ctx, queue, data)
}

func decode(payload []byte, v any, field string) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "malformed job payload")
	}
	var ids map[string]any
	_ = json.Unmarshal(payload, &ids)
	if _, ok := ids[field]; !ok {
		return apperr.New(apperr.KindValidation, "job payload missing %s", field)
	}
	return nil
}

// jobID extracts the entity id used to key attempt counters.
func jobID(payload []byte) string {
	var ids struct {
		SubmissionID string `json:"submissionId"`
		PayoutID     string `json:"payoutId"`
	}
	_ = json.Unmarshal(payload, &ids)
	if ids.SubmissionID != "" {
		return ids.SubmissionID
	}
	return ids.PayoutID
}
