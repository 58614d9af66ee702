package transport

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/metrics"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

const DefaultPushTimeout = 10 * time.Second

type job struct {
	ctx        context.Context
	entityType string
	id         string
	payload    *structpb.Struct
}

// PushQueue sends snapshots through a Pusher. Snapshots of the same entity
// are sent one at a time in enqueue order; different entities are sent
// concurrently.
type PushQueue struct {
	pusher  Pusher
	timeout time.Duration
	logger  logging.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	queues map[string][]job
	closed bool
	wg     sync.WaitGroup
}

func NewPushQueue(pusher Pusher, timeout time.Duration, logger logging.Logger, m *metrics.Metrics) *PushQueue {
	if timeout <= 0 {
		timeout = DefaultPushTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PushQueue{
		pusher:  pusher,
		timeout: timeout,
		logger:  logger,
		metrics: m,
		queues:  map[string][]job{},
	}
}

// For returns the Sender of one entity type.
func (q *PushQueue) For(entityType string) Sender {
	return typedSender{q: q, entityType: entityType}
}

type typedSender struct {
	q          *PushQueue
	entityType string
}

func (s typedSender) TrySend(ctx context.Context, entity models.Entity) {
	s.q.Enqueue(ctx, s.entityType, entity)
}

// Enqueue snapshots entity and schedules its push. It never blocks on the
// network and never fails; problems are logged.
func (q *PushQueue) Enqueue(ctx context.Context, entityType string, entity models.Entity) {
	payload, err := ToStruct(entity)
	if err != nil {
		q.logger.Warn(ctx, "failed to encode entity for push", "type", entityType, "id", entity.EntityID(), "error", err)
		q.metrics.Pushed(err)
		return
	}

	j := job{
		ctx:        context.WithoutCancel(ctx),
		entityType: entityType,
		id:         entity.EntityID(),
		payload:    payload,
	}
	key := entityType + "/" + j.id

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn(ctx, "push queue closed, dropping entity", "type", entityType, "id", j.id)
		return
	}
	pending, running := q.queues[key]
	q.queues[key] = append(pending, j)
	if !running {
		q.wg.Add(1)
		go q.drain(key)
	}
}

func (q *PushQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		pending := q.queues[key]
		if len(pending) == 0 {
			delete(q.queues, key)
			q.mu.Unlock()
			return
		}
		j := pending[0]
		q.queues[key] = pending[1:]
		q.mu.Unlock()

		q.send(j)
	}
}

func (q *PushQueue) send(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, q.timeout)
	defer cancel()

	err := q.pusher.Push(ctx, j.entityType, j.id, j.payload)
	q.metrics.Pushed(err)
	if err != nil {
		q.logger.Warn(ctx, "push failed", "type", j.entityType, "id", j.id, "error", err)
		return
	}
	q.logger.Debug(ctx, "pushed", "type", j.entityType, "id", j.id)
}

// Wait blocks until every enqueued snapshot has been sent or has failed.
func (q *PushQueue) Wait() {
	q.wg.Wait()
}

// Close stops accepting snapshots and waits for the pending ones.
func (q *PushQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wg.Wait()
}
