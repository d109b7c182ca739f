package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/repostpay/backend/internal/events"
	"github.com/repostpay/backend/internal/models"
	"github.com/repostpay/backend/internal/repositories"
	"go.uber.org/zap"
)

// Actor identifies who triggered an operation, for the audit trail.
type Actor struct {
	ID   *uuid.UUID
	Type string
}

var SystemActor = Actor{Type: models.ActorSystem}

func ParticipantActor(id uuid.UUID) Actor { return Actor{ID: &id, Type: models.ActorParticipant} }
func SponsorActor(id uuid.UUID) Actor     { return Actor{ID: &id, Type: models.ActorSponsor} }
func AdminActor(id uuid.UUID) Actor       { return Actor{ID: &id, Type: models.ActorAdmin} }

func writeAudit(ctx context.Context, tx repositories.Tx, now time.Time, actor Actor, action, entityType string, entityID uuid.UUID, meta map[string]any) error {
	actorType := actor.Type
	if actorType == "" {
		actorType = models.ActorSystem
	}
	return tx.Audit().Log(ctx, models.AuditLog{
		ID:         uuid.New(),
		ActorID:    actor.ID,
		ActorType:  actorType,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entityID,
		Meta:       meta,
		CreatedAt:  now,
	})
}

// publish is best effort: the state change has already committed.
func publish(ctx context.Context, p events.Publisher, log *zap.Logger, stream string, e events.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, stream, e); err != nil {
		log.Warn("failed to publish event", zap.String("type", e.Type), zap.Error(err))
	}
}
