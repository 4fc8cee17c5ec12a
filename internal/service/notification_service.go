package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-core/internal/models"
	"github.com/noah-isme/academic-core/pkg/jobs"
	"github.com/noah-isme/academic-core/pkg/middleware/requestid"
)

const deliveryTimeout = 5 * time.Second

// NotificationSink delivers domain events to one external channel.
type NotificationSink interface {
	Name() string
	Deliver(ctx context.Context, event models.DomainEvent) error
}

// NotificationConfig sizes the delivery worker pool.
type NotificationConfig struct {
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

type delivery struct {
	sink  NotificationSink
	event models.DomainEvent
}

// NotificationService fans committed domain events out to sinks off the
// request path. Delivery problems are logged and counted, never returned.
type NotificationService struct {
	queue   *jobs.Queue
	sinks   []NotificationSink
	metrics *MetricsService
	logger  *zap.Logger
}

// NewNotificationService builds the dispatcher. Call Start before Notify.
func NewNotificationService(sinks []NotificationSink, metrics *MetricsService, cfg NotificationConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{sinks: sinks, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnExhausted: func(job jobs.Job, err error) {
			if d, ok := job.Payload.(delivery); ok {
				s.metrics.RecordNotification(d.sink.Name(), false)
			}
		},
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries and discards the rest.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify queues the event once per sink. It never blocks the caller.
func (s *NotificationService) Notify(ctx context.Context, event models.DomainEvent) {
	if s == nil {
		return
	}
	for _, sink := range s.sinks {
		job := jobs.Job{ID: event.ID, Type: string(event.Type), Payload: delivery{sink: sink, event: event}}
		if err := s.queue.TryEnqueue(job); err != nil {
			s.metrics.RecordNotification(sink.Name(), false)
			s.logger.Warn("notification dropped",
				zap.String("sink", sink.Name()),
				zap.String("event_id", event.ID),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
	}
}

func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	d, ok := job.Payload.(delivery)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	if err := d.sink.Deliver(ctx, d.event); err != nil {
		return err
	}
	s.metrics.RecordNotification(d.sink.Name(), true)
	return nil
}

// LogSink writes events to the application log.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink constructs a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Name identifies the sink in metrics.
func (l *LogSink) Name() string {
	return "log"
}

// Deliver logs the event.
func (l *LogSink) Deliver(ctx context.Context, event models.DomainEvent) error {
	l.logger.Info("domain event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("student_id", event.StudentID),
		zap.String("enrollment_id", event.EnrollmentID),
		zap.String("correlation_id", event.CorrelationID))
	return nil
}

func newDomainEvent(ctx context.Context, eventType models.EventType, enrollment models.Enrollment, payload map[string]interface{}) models.DomainEvent {
	return models.DomainEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		StudentID:     enrollment.StudentID,
		EnrollmentID:  enrollment.ID,
		SectionID:     enrollment.SectionID,
		CorrelationID: requestid.FromContext(ctx),
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}
