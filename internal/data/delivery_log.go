package data

import (
	"context"
	"sync"
	"time"

	"KuroAccounts/internal/model"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// Delivery statuses.
const (
	DeliveryStatusPublished = "PUBLISHED"
	DeliveryStatusFailed    = "FAILED"
)

// EventDeliveryLog is the GORM model for the event_delivery_logs table.
type EventDeliveryLog struct {
	ID        int64     `gorm:"primaryKey;column:id"`
	EventID   string    `gorm:"column:event_id;type:varchar(36);not null;index"`
	EventType string    `gorm:"column:event_type;type:varchar(50);not null"`
	Channel   string    `gorm:"column:channel;type:varchar(100);not null"`
	EventKey  string    `gorm:"column:event_key;type:varchar(100)"`
	Status    string    `gorm:"column:status;type:varchar(20);not null"`
	Attempts  int       `gorm:"column:attempts;not null"`
	LastError string    `gorm:"column:last_error;type:text"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (EventDeliveryLog) TableName() string {
	return "event_delivery_logs"
}

// DeliveryLogRepo writes one row per terminal event delivery outcome. Rows
// are queued and written by a background goroutine so recording never
// blocks the publisher; a full queue drops the row with a warning.
type DeliveryLogRepo struct {
	db      *gorm.DB
	logChan chan *EventDeliveryLog
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	logger  *log.Helper
}

// NewDeliveryLogRepo creates the repository and starts its writer.
func NewDeliveryLogRepo(db *gorm.DB, logger log.Logger) (*DeliveryLogRepo, func()) {
	r := &DeliveryLogRepo{
		db:      db,
		logChan: make(chan *EventDeliveryLog, 1000),
		done:    make(chan struct{}),
		logger:  log.NewHelper(logger),
	}

	go r.start()

	return r, r.Close
}

func (r *DeliveryLogRepo) start() {
	defer close(r.done)
	for row := range r.logChan {
		if err := r.db.WithContext(context.Background()).Create(row).Error; err != nil {
			r.logger.Errorw("msg", "failed to write delivery log",
				"event_id", row.EventID,
				"status", row.Status,
				"error", err)
		}
	}
}

// Record queues a delivery row for event.
func (r *DeliveryLogRepo) Record(_ context.Context, event *model.DomainEvent, published bool, attempts int, deliveryErr error) {
	row := &EventDeliveryLog{
		EventID:   event.ID,
		EventType: event.Type,
		Channel:   event.Channel,
		EventKey:  event.Key,
		Status:    DeliveryStatusPublished,
		Attempts:  attempts,
	}
	if !published {
		row.Status = DeliveryStatusFailed
	}
	if deliveryErr != nil {
		row.LastError = deliveryErr.Error()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warnw("msg", "delivery log closed, dropping row", "event_id", event.ID)
		return
	}

	select {
	case r.logChan <- row:
	default:
		r.logger.Warnw("msg", "delivery log channel full, dropping row",
			"event_id", event.ID,
			"status", row.Status)
	}
}

// Close stops accepting rows and waits for queued rows to be written.
func (r *DeliveryLogRepo) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.logChan)
	}
	r.mu.Unlock()
	<-r.done
}
