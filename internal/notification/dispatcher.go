// README: Async notification dispatcher. Submit never blocks; workers hand messages to a Sender.
package notification

import (
	"context"
	"sync"
	"time"

	"ridehail/internal/logger"
	"ridehail/internal/types"
)

// Notifier is what the ride lifecycle fires on every transition. Calls are
// fire and forget.
type Notifier interface {
	NotifyRideStatus(ctx context.Context, ride RideInfo, status string, to Recipient)
	NotifyRatingRequest(ctx context.Context, ride RideInfo, to Recipient)
	NotifyRideRequest(ctx context.Context, ride RideInfo, driverIDs []types.ID)
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
	sendTimeout      = 10 * time.Second
)

type Dispatcher struct {
	sender  Sender
	queue   chan Message
	workers int
	log     logger.ILogger
	now     func() time.Time

	mu      sync.Mutex
	dropped int
}

func NewDispatcher(sender Sender, workers, queueSize int, log logger.ILogger) *Dispatcher {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Dispatcher{
		sender:  sender,
		queue:   make(chan Message, queueSize),
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

// Run starts the workers and blocks until ctx is done. Messages still queued
// at shutdown are flushed with a short deadline.
func (d *Dispatcher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}
	wg.Wait()
	d.drain()
	return nil
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.send(context.Background(), msg)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.queue:
			d.send(context.Background(), msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(parent context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(parent, sendTimeout)
	defer cancel()
	if err := d.sender.Send(ctx, msg); err != nil {
		d.log.Warning("notification send failed",
			logger.String("kind", string(msg.Kind)),
			logger.String("ride_id", string(msg.RideID)),
			logger.String("user_id", string(msg.Recipient.UserID)),
			logger.Error(err),
		)
	}
}

// Submit enqueues msg, dropping it when the queue is full.
func (d *Dispatcher) Submit(msg Message) bool {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = d.now()
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.log.Warning("notification queue full, dropping message",
			logger.String("kind", string(msg.Kind)),
			logger.String("ride_id", string(msg.RideID)),
		)
		return false
	}
}

func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) NotifyRideStatus(_ context.Context, ride RideInfo, status string, to Recipient) {
	d.Submit(Message{
		Kind:      KindRideStatus,
		Recipient: to,
		RideID:    ride.ID,
		Status:    status,
		Class:     ride.Class,
		Title:     "Ride update",
		Body:      StatusMessage(to.Role, status),
		Data: map[string]string{
			"ride_id": string(ride.ID),
			"status":  status,
		},
	})
}

func (d *Dispatcher) NotifyRatingRequest(_ context.Context, ride RideInfo, to Recipient) {
	d.Submit(Message{
		Kind:      KindRatingRequest,
		Recipient: to,
		RideID:    ride.ID,
		Status:    ride.Status,
		Title:     "Rate your trip",
		Body:      RatingRequestMessage(to.Role),
		Data:      map[string]string{"ride_id": string(ride.ID)},
	})
}

func (d *Dispatcher) NotifyRideRequest(_ context.Context, ride RideInfo, driverIDs []types.ID) {
	body := RideRequestMessage(ride)
	for _, id := range driverIDs {
		d.Submit(Message{
			Kind:      KindRideRequest,
			Recipient: Recipient{UserID: id, Role: types.RoleDriver},
			RideID:    ride.ID,
			Status:    ride.Status,
			Class:     ride.Class,
			Title:     "New ride request",
			Body:      body,
			Data: map[string]string{
				"ride_id":        string(ride.ID),
				"ride_class":     string(ride.Class),
				"pickup_lat":     formatCoord(ride.Pickup.Lat),
				"pickup_lng":     formatCoord(ride.Pickup.Lng),
				"estimated_fare": formatMajor(ride.EstimatedFare),
			},
		})
	}
}
