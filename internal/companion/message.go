package companion

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dwizi/room-companion/internal/convo"
	"github.com/dwizi/room-companion/internal/games"
	"github.com/dwizi/room-companion/internal/llm"
	"github.com/dwizi/room-companion/internal/moderation"
	"github.com/dwizi/room-companion/internal/roomerr"
)

// OnMessage decides what to do with one inbound message. Handled failures
// are reported through Action.Cause; the returned error is only set for
// messages that cannot be processed at all.
func (e *Engine) OnMessage(ctx context.Context, msg Message) (Action, error) {
	action, screened, err := e.Screen(ctx, msg)
	if err != nil || screened {
		return action, err
	}
	return e.Respond(ctx, msg)
}

// Screen runs the checks every message goes through, commands included: it
// refreshes the sender's mood, then applies the rate limiter and the content
// policy to group messages. screened is true when the message is fully
// handled and must not be answered.
func (e *Engine) Screen(ctx context.Context, msg Message) (action Action, screened bool, err error) {
	msg, text, err := e.prepare(msg)
	if err != nil {
		return Action{Kind: ActionIgnored}, true, err
	}
	if text == "" {
		return Action{Kind: ActionIgnored}, true, nil
	}

	mood, _ := e.detector.Detect(text)
	e.moods.Set(msg.Participant, mood)

	if msg.Private {
		return Action{}, false, nil
	}
	if e.limiter.Check(msg.Room, msg.Participant, msg.At) {
		action = e.enforce(ctx, msg, moderation.ReasonRate)
		action.Cause = errors.Join(roomerr.ErrRateExceeded, action.Cause)
		return action, true, nil
	}
	if reason, hit := e.content.Check(text); hit {
		action = e.enforce(ctx, msg, reason)
		action.Cause = errors.Join(roomerr.ErrPolicyViolation, action.Cause)
		return action, true, nil
	}
	return Action{}, false, nil
}

// Respond answers a message that already passed Screen: an active game
// takes it first, otherwise addressed messages get a dialogue reply.
func (e *Engine) Respond(ctx context.Context, msg Message) (Action, error) {
	msg, text, err := e.prepare(msg)
	if err != nil {
		return Action{Kind: ActionIgnored}, err
	}
	if text == "" {
		return Action{Kind: ActionIgnored}, nil
	}

	if e.games.Active(msg.Participant) {
		outcome, err := e.games.Submit(msg.Participant, text, msg.At)
		if err == nil {
			if outcome.Ended() {
				e.logger.Info("game ended", "room", msg.Room, "participant", msg.Participant, "kind", outcome.Kind, "state", outcome.State, "score", outcome.Score)
			}
			return Action{Kind: ActionGameReply, Text: outcome.Message, Outcome: &outcome, Cause: outcome.Rejection}, nil
		}
		if !errors.Is(err, games.ErrNoSession) {
			return Action{Kind: ActionIgnored}, err
		}
	}

	if !msg.Private && !msg.Addressed {
		return Action{Kind: ActionIgnored}, nil
	}
	return e.reply(ctx, msg, text, e.moods.Get(msg.Participant)), nil
}

func (e *Engine) prepare(msg Message) (Message, string, error) {
	msg.Room = strings.TrimSpace(msg.Room)
	msg.Participant = strings.TrimSpace(msg.Participant)
	if msg.Room == "" || msg.Participant == "" {
		return msg, "", fmt.Errorf("%w: room and participant are required", roomerr.ErrInputRejected)
	}
	if msg.At.IsZero() {
		msg.At = e.now()
	}
	return msg, strings.TrimSpace(msg.Text), nil
}

func (e *Engine) enforce(ctx context.Context, msg Message, reason string) Action {
	verdict := e.ledger.Record(msg.Room, msg.Participant, reason, msg.At)
	name := displayName(msg)
	event := EnforcementEvent{
		Room:        msg.Room,
		Participant: msg.Participant,
		Reason:      reason,
		WarnCount:   verdict.WarnCount,
		Threshold:   verdict.Threshold,
		Actuator:    ActuatorNotCalled,
		OccurredAt:  msg.At,
	}
	action := Action{Kind: ActionDeletedAndWarned, Verdict: &verdict}

	if verdict.Mute == nil {
		action.Text = fmt.Sprintf("⚠️ %s, %s. Warning %d/%d.", name, reasonText(reason), verdict.WarnCount, verdict.Threshold)
		e.logger.Info("participant warned", "room", msg.Room, "participant", msg.Participant, "reason", reason, "warn_count", verdict.WarnCount)
		e.recordAudit(ctx, event)
		return action
	}

	mute := verdict.Mute
	event.Tier = mute.Tier
	event.MuteFor = mute.Duration
	event.MuteUntil = mute.Until
	err := e.restrict(ctx, Restriction{
		Room:        msg.Room,
		Participant: msg.Participant,
		Until:       mute.Until,
		Duration:    mute.Duration,
		Reason:      reason,
	})
	if err == nil {
		event.Actuator = ActuatorApplied
		action.Text = fmt.Sprintf("🔇 %s, %s. Muted for %s.", name, reasonText(reason), humanDuration(mute.Duration))
		e.logger.Info("participant muted", "room", msg.Room, "participant", msg.Participant, "reason", reason, "tier", mute.Tier, "until", mute.Until)
		e.recordAudit(ctx, event)
		return action
	}

	event.Actuator = ActuatorFailed
	event.Error = err.Error()
	action.Cause = err
	if e.cfg.ResetPolicy == ResetRestore {
		e.ledger.Restore(verdict)
		event.Restored = true
	}
	e.logger.Error("mute failed", "room", msg.Room, "participant", msg.Participant, "reason", reason, "tier", mute.Tier, "policy", e.cfg.ResetPolicy, "error", err)
	action.Text = fmt.Sprintf("⚠️ %s, %s. I tried to mute you for %s but could not, sorry! Admins, please check my permissions.",
		name, reasonText(reason), humanDuration(mute.Duration))
	e.recordAudit(ctx, event)
	return action
}

func (e *Engine) restrict(ctx context.Context, restriction Restriction) error {
	if e.actuator == nil {
		return fmt.Errorf("%w: no actuator configured", roomerr.ErrActuatorFailure)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.ActuatorTimeout)
	defer cancel()
	if err := e.actuator.Restrict(callCtx, restriction); err != nil {
		if errors.Is(err, roomerr.ErrActuatorFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", roomerr.ErrActuatorFailure, err)
	}
	return nil
}

func (e *Engine) recordAudit(ctx context.Context, event EnforcementEvent) {
	if e.audit == nil {
		return
	}
	if err := e.audit.RecordEnforcement(context.WithoutCancel(ctx), event); err != nil {
		e.logger.Warn("record enforcement failed", "room", event.Room, "participant", event.Participant, "error", err)
	}
}

// reply appends the message to the room history, asks the completer for an
// answer and always produces a reply.
func (e *Engine) reply(ctx context.Context, msg Message, text string, mood convo.Mood) Action {
	history := e.buffer.AppendAndSnapshot(msg.Room, convo.Exchange{
		Role:        convo.RoleUser,
		Participant: msg.Participant,
		Text:        text,
		At:          msg.At,
	})

	request := llm.Request{
		SystemInstruction: e.systemInstruction(msg, mood),
		History:           make([]llm.Message, 0, len(history)),
	}
	for _, exchange := range history {
		role := llm.RoleUser
		if exchange.Role == convo.RoleAssistant {
			role = llm.RoleAssistant
		}
		request.History = append(request.History, llm.Message{Role: role, Content: exchange.Text})
	}

	var cause error
	answer, err := e.complete(ctx, request)
	if err != nil {
		cause = err
		answer = e.pick(e.cfg.Fallbacks)
		e.logger.Warn("completion failed, using fallback", "room", msg.Room, "participant", msg.Participant, "error", err)
	} else {
		answer = strings.TrimSpace(e.emoji(mood) + " " + answer)
	}

	e.buffer.Append(msg.Room, convo.Exchange{Role: convo.RoleAssistant, Text: answer, At: e.now()})
	return Action{Kind: ActionNormalReply, Text: answer, Cause: cause}
}

// complete asks the completer for a reply. Retries share a single
// CompletionTimeout deadline, so a slow collaborator is never waited on for
// longer than that before the fallback.
func (e *Engine) complete(ctx context.Context, request llm.Request) (string, error) {
	if e.completer == nil {
		return "", fmt.Errorf("%w: %w", roomerr.ErrCollaboratorFailure, llm.ErrUnavailable)
	}
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CompletionTimeout)
	defer cancel()
	var lastErr error
	for attempt := 0; attempt <= e.cfg.CompletionRetries; attempt++ {
		if callCtx.Err() != nil {
			break
		}
		answer, err := e.completer.Complete(callCtx, request)
		answer = strings.TrimSpace(answer)
		if err == nil && answer != "" {
			return answer, nil
		}
		if err == nil {
			err = errors.New("empty completion")
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = callCtx.Err()
	}
	return "", fmt.Errorf("%w: %w", roomerr.ErrCollaboratorFailure, lastErr)
}

func (e *Engine) systemInstruction(msg Message, mood convo.Mood) string {
	lines := []string{e.cfg.SystemInstruction}
	if name := strings.TrimSpace(msg.DisplayName); name != "" {
		lines = append(lines, fmt.Sprintf("You are replying to %s.", name))
	}
	if mood != convo.MoodNeutral {
		lines = append(lines, fmt.Sprintf("They currently seem %s; match their mood.", mood))
	}
	return strings.Join(lines, "\n")
}

func displayName(msg Message) string {
	if name := strings.TrimSpace(msg.DisplayName); name != "" {
		return name
	}
	return msg.Participant
}

func reasonText(reason string) string {
	switch reason {
	case moderation.ReasonRate:
		return "please slow down, no spamming"
	case moderation.ReasonLink:
		return "links are not allowed here"
	case moderation.ReasonProfanity:
		return "mind your language"
	default:
		return "that breaks the room rules"
	}
}
