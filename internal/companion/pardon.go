package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/room-companion/internal/roomerr"
)

const ReasonPardon = "pardon"

type Pardon struct {
	Room        string
	Participant string
	// Forgotten is set when the participant had a ledger record.
	Forgotten bool
	// Released is set when the platform restriction was lifted.
	Released bool
}

// Pardon wipes a participant's ledger record so escalation starts over from
// the first tier. With release set it also lifts any active mute through the
// actuator. The record stays forgotten when the release fails.
func (e *Engine) Pardon(ctx context.Context, room, participant string, release bool) (Pardon, error) {
	room = strings.TrimSpace(room)
	participant = strings.TrimSpace(participant)
	if room == "" || participant == "" {
		return Pardon{}, fmt.Errorf("%w: room and participant are required", roomerr.ErrInputRejected)
	}
	result := Pardon{
		Room:        room,
		Participant: participant,
		Forgotten:   e.ledger.Forget(room, participant),
	}
	event := EnforcementEvent{
		Room:        room,
		Participant: participant,
		Reason:      ReasonPardon,
		Actuator:    ActuatorNotCalled,
		OccurredAt:  e.now(),
	}
	if !release {
		e.logger.Info("participant pardoned", "room", room, "participant", participant, "forgotten", result.Forgotten)
		e.recordAudit(ctx, event)
		return result, nil
	}

	err := e.release(ctx, room, participant)
	if err != nil {
		event.Actuator = ActuatorFailed
		event.Error = err.Error()
		e.logger.Error("release failed", "room", room, "participant", participant, "error", err)
		e.recordAudit(ctx, event)
		return result, err
	}
	result.Released = true
	event.Actuator = ActuatorApplied
	e.logger.Info("participant pardoned and released", "room", room, "participant", participant, "forgotten", result.Forgotten)
	e.recordAudit(ctx, event)
	return result, nil
}

func (e *Engine) release(ctx context.Context, room, participant string) error {
	if e.actuator == nil {
		return fmt.Errorf("%w: no actuator configured", roomerr.ErrActuatorFailure)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ActuatorTimeout)
	defer cancel()
	if err := e.actuator.Release(callCtx, room, participant); err != nil {
		if errors.Is(err, roomerr.ErrActuatorFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	return nil
}
