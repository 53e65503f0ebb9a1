package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/internal/store/model"
)

// Recorder records administrative changes. Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, target, action string, details any)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, string, string, any) {}

// Ingestor handles the asynchronous persistence of audit events.
type Ingestor interface {
	Recorder
	Start(ctx context.Context)
	// Stop closes the buffer and waits until pending events are written.
	Stop()
}

type ingestor struct {
	logger    *zap.Logger
	repo      store.Repository
	events    chan *model.AuditEvent
	done      chan struct{}
	batchSize int
	flushTime time.Duration
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

func NewIngestor(logger *zap.Logger, repo store.Repository) Ingestor {
	return &ingestor{
		logger:    logger,
		repo:      repo,
		events:    make(chan *model.AuditEvent, 1000),
		done:      make(chan struct{}),
		batchSize: 20,
		flushTime: 2 * time.Second,
		now:       time.Now,
	}
}

func (i *ingestor) Record(ctx context.Context, target, action string, details any) {
	payload := "{}"
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			i.logger.Warn("audit details not serializable", zap.String("target", target), zap.Error(err))
		} else {
			payload = string(data)
		}
	}

	event := &model.AuditEvent{
		ID:             uuid.NewString(),
		Actor:          store.ActorFromContext(ctx),
		TargetResource: target,
		Action:         action,
		DetailsJSON:    payload,
		CreatedAt:      i.now().UTC(),
	}

	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		i.logger.Warn("audit ingestor stopped, dropping event", zap.String("target", target))
		return
	}

	select {
	case i.events <- event:
	default:
		i.logger.Warn("audit buffer full, dropping event",
			zap.String("target", target),
			zap.String("action", action),
		)
	}
}

func (i *ingestor) Start(ctx context.Context) {
	go i.worker(ctx)
}

func (i *ingestor) Stop() {
	i.mu.Lock()
	if !i.closed {
		i.closed = true
		close(i.events)
	}
	i.mu.Unlock()
	<-i.done
}

func (i *ingestor) worker(ctx context.Context) {
	defer close(i.done)

	batch := make([]*model.AuditEvent, 0, i.batchSize)
	ticker := time.NewTicker(i.flushTime)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		err := i.repo.WithTx(context.Background(), func(tx store.Repository) error {
			for _, ev := range batch {
				if err := tx.Audit().Log(context.Background(), ev); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			i.logger.Error("failed to persist audit events", zap.Int("count", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-i.events:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= i.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			// drain what is already buffered
			for {
				select {
				case ev, ok := <-i.events:
					if !ok {
						flush()
						return
					}
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		}
	}
}
