package services

import (
	"context"
	"errors"
	"sync"

	capturerepo "github.com/yungbote/mindtrail-backend/internal/data/repos/capture"
	types "github.com/yungbote/mindtrail-backend/internal/domain"
	"github.com/yungbote/mindtrail-backend/internal/observability"
	"github.com/yungbote/mindtrail-backend/internal/platform/logger"
	"github.com/yungbote/mindtrail-backend/internal/realtime"
)

// Snapshot is the full ordered collection at one point in time, or the error
// that ended the subscription.
type Snapshot struct {
	Items []*types.Capture
	Err   error
}

type CaptureFeed interface {
	// Subscribe delivers an initial snapshot and a fresh one after every
	// change to the user's collection.
	Subscribe(ctx context.Context, userID string, limit int) (*Subscription, error)
}

type captureFeed struct {
	log     *logger.Logger
	repo    capturerepo.CaptureRepo
	hub     *realtime.SSEHub
	metrics *observability.Metrics
}

func NewCaptureFeed(log *logger.Logger, repo capturerepo.CaptureRepo, hub *realtime.SSEHub, metrics *observability.Metrics) CaptureFeed {
	if log == nil {
		log = logger.Nop()
	}
	return &captureFeed{
		log:     log.With("service", "CaptureFeed"),
		repo:    repo,
		hub:     hub,
		metrics: metrics,
	}
}

type Subscription struct {
	updates chan Snapshot
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	cancel  func()
}

func (s *Subscription) Updates() <-chan Snapshot { return s.updates }

// Cancel stops delivery and returns once the feed goroutine has exited.
// Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.stop)
		s.cancel()
		<-s.done
	})
}

func (f *captureFeed) Subscribe(ctx context.Context, userID string, limit int) (*Subscription, error) {
	if userID == "" {
		return nil, errors.New("user id required")
	}
	ref := capturerepo.CollectionRef{UserID: userID}
	log := f.log.With("uid", userID)

	client := f.hub.NewSSEClient(userID)
	f.hub.AddChannel(client, realtime.CaptureChannel(userID))

	sub := &Subscription{
		updates: make(chan Snapshot, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		cancel:  func() { f.hub.CloseClient(client) },
	}
	f.metrics.StreamSubscribed()
	log.Debug("captures_subscribe_start", "clientID", client.ID)

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer f.metrics.StreamUnsubscribed()
		defer f.hub.CloseClient(client)

		send := func(s Snapshot) bool {
			select {
			case sub.updates <- s:
				return true
			case <-sub.stop:
				return false
			case <-ctx.Done():
				return false
			}
		}
		load := func() bool {
			items, err := f.repo.List(ctx, nil, ref, limit)
			if err != nil {
				if ctx.Err() != nil {
					return false
				}
				log.Error("captures_snapshot_error", "error", err)
				send(Snapshot{Err: err})
				return false
			}
			log.Debug("captures_snapshot_sent", "count", len(items))
			return send(Snapshot{Items: items})
		}

		if !load() {
			return
		}
		for {
			select {
			case <-sub.stop:
				log.Debug("captures_unsubscribe")
				return
			case <-ctx.Done():
				log.Debug("captures_unsubscribe", "reason", ctx.Err())
				return
			case _, ok := <-client.Outbound:
				if !ok {
					return
				}
				// coalesce bursts into one reload
				drain(client.Outbound)
				if !load() {
					return
				}
			}
		}
	}()

	return sub, nil
}

func drain(ch <-chan realtime.SSEMessage) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
