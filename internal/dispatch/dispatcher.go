package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrQueueFull = errors.New("dispatch queue is full")

type Job struct {
	ID        string
	Room      string
	CreatedAt time.Time
	Run       func(ctx context.Context) error
}

// Dispatcher runs jobs on a fixed set of lanes. Every job for a room lands
// on the same lane, so a room's jobs run one at a time in enqueue order
// while other rooms proceed on other lanes.
type Dispatcher struct {
	lanes     []chan Job
	logger    *slog.Logger
	startOnce sync.Once
}

func New(lanes, queueSize int, logger *slog.Logger) *Dispatcher {
	if lanes < 1 {
		lanes = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		lanes:  make([]chan Job, lanes),
		logger: logger,
	}
	for index := range d.lanes {
		d.lanes[index] = make(chan Job, queueSize)
	}
	return d
}

func (d *Dispatcher) Start(ctx context.Context) error {
	var workers sync.WaitGroup
	d.startOnce.Do(func() {
		for index := range d.lanes {
			workers.Add(1)
			go func(lane int) {
				defer workers.Done()
				d.worker(ctx, lane)
			}(index)
		}
	})

	<-ctx.Done()
	workers.Wait()
	return nil
}

func (d *Dispatcher) Enqueue(job Job) (Job, error) {
	if job.Run == nil {
		return Job{}, errors.New("job has no run function")
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	select {
	case d.lanes[d.laneFor(job.Room)] <- job:
		return job, nil
	default:
		d.logger.Warn("dispatch queue full", "job_id", job.ID, "room", job.Room)
		return Job{}, ErrQueueFull
	}
}

// Pending counts queued jobs across all lanes.
func (d *Dispatcher) Pending() int {
	total := 0
	for _, lane := range d.lanes {
		total += len(lane)
	}
	return total
}

func (d *Dispatcher) laneFor(room string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(strings.TrimSpace(room)))
	return int(hasher.Sum32() % uint32(len(d.lanes)))
}

func (d *Dispatcher) worker(ctx context.Context, lane int) {
	d.logger.Debug("lane started", "lane", lane)
	for {
		select {
		case <-ctx.Done():
			d.logger.Debug("lane stopped", "lane", lane)
			return
		case job := <-d.lanes[lane]:
			d.process(ctx, lane, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, lane int, job Job) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logger.Error("job panicked", "lane", lane, "job_id", job.ID, "room", job.Room, "panic", recovered)
		}
	}()
	if err := job.Run(ctx); err != nil {
		d.logger.Error("job failed", "lane", lane, "job_id", job.ID, "room", job.Room, "error", err)
	}
}
