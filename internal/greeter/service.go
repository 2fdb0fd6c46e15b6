package greeter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dwizi/room-companion/internal/heartbeat"
)

type Speaker interface {
	Greeting(now time.Time) string
}

type RoomSource interface {
	GreetingRooms(ctx context.Context) ([]string, error)
}

type Publisher interface {
	Publish(ctx context.Context, room, text string) error
}

// Service sends the engine's greeting for the current period to every
// opted-in room whenever the schedule fires.
type Service struct {
	schedule  Schedule
	speaker   Speaker
	rooms     RoomSource
	publisher Publisher
	logger    *slog.Logger
	reporter  heartbeat.Reporter
	now       func() time.Time
}

func New(schedule Schedule, speaker Speaker, rooms RoomSource, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		schedule:  schedule,
		speaker:   speaker,
		rooms:     rooms,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	s.reporter = reporter
}

func (s *Service) Start(ctx context.Context) error {
	if s.speaker == nil || s.rooms == nil || s.publisher == nil {
		if s.reporter != nil {
			s.reporter.Disabled("greeter", "dependencies missing")
		}
		<-ctx.Done()
		return nil
	}
	if s.reporter != nil {
		s.reporter.Starting("greeter", "started")
		s.reporter.Beat("greeter", "waiting for "+s.schedule.String())
	}
	s.logger.Info("greeter started", "schedule", s.schedule.String(), "timezone", s.schedule.Location().String())

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if s.reporter != nil {
				s.reporter.Stopped("greeter", "stopped")
			}
			s.logger.Info("greeter stopped")
			return nil
		case <-timer.C:
		}
		sent, err := s.Broadcast(ctx, next)
		if err != nil {
			if s.reporter != nil {
				s.reporter.Degrade("greeter", "broadcast failed", err)
			}
			s.logger.Error("greeting broadcast failed", "error", err, "sent", sent)
			continue
		}
		if s.reporter != nil {
			s.reporter.Beat("greeter", "broadcast completed")
		}
	}
}

// Broadcast publishes one greeting for at to every room. It keeps going
// past rooms that fail and returns the joined errors.
func (s *Service) Broadcast(ctx context.Context, at time.Time) (int, error) {
	rooms, err := s.rooms.GreetingRooms(ctx)
	if err != nil {
		return 0, err
	}
	local := at.In(s.schedule.Location())
	sent := 0
	var errs []error
	for _, room := range rooms {
		text := s.speaker.Greeting(local)
		if text == "" {
			continue
		}
		if err := s.publisher.Publish(ctx, room, text); err != nil {
			s.logger.Warn("greeting publish failed", "room", room, "error", err)
			errs = append(errs, err)
			continue
		}
		sent++
	}
	s.logger.Info("greetings sent", "rooms", len(rooms), "sent", sent)
	return sent, errors.Join(errs...)
}
