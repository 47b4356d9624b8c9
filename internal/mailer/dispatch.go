package mailer

import (
	"context"
	"encoding/json"

	"github.com/nutriplan-app/apiserver/internal/mq"
	"go.uber.org/zap"
)

// OutboundChannel is the broker channel carrying composed email jobs.
const OutboundChannel = "mail.outbound"

// Dispatcher hands a composed message off for delivery. Request handlers
// only ever see this interface; delivery failures never surface to them.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

// QueueDispatcher publishes messages to the broker; a Worker on the other
// side performs the actual SMTP delivery.
type QueueDispatcher struct {
	queue *mq.MQ
}

func NewQueueDispatcher(queue *mq.MQ) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) error {
	_, err := d.queue.PublishJSON(ctx, OutboundChannel, msg, map[string]string{"to": msg.To})
	return err
}

// DirectDispatcher sends synchronously through the mailer. Used when no
// broker is configured.
type DirectDispatcher struct {
	mailer *Mailer
}

func NewDirectDispatcher(m *Mailer) *DirectDispatcher {
	return &DirectDispatcher{mailer: m}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, msg Message) error {
	return d.mailer.Send(ctx, msg)
}

// Worker consumes the outbound channel and delivers each job through the
// mailer. Delivery failures are logged and acknowledged; the owning request
// already succeeded and a redelivery loop would only hammer the relay.
type Worker struct {
	queue  *mq.MQ
	mailer *Mailer
	logger *zap.SugaredLogger
}

func NewWorker(queue *mq.MQ, m *Mailer, logger *zap.SugaredLogger) *Worker {
	return &Worker{queue: queue, mailer: m, logger: logger}
}

// Run blocks consuming mail jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Subscribe(ctx, OutboundChannel, func(ctx context.Context, delivery mq.Message) error {
		var msg Message
		if err := json.Unmarshal(delivery.Data, &msg); err != nil {
			w.logger.Errorw("discarding malformed mail job", "id", delivery.ID, "err", err)
			return nil
		}
		if err := w.mailer.Send(ctx, msg); err != nil {
			w.logger.Errorw("failed to send email", "to", msg.To, "subject", msg.Subject, "err", err)
			return nil
		}
		w.logger.Infow("email sent", "to", msg.To, "subject", msg.Subject)
		return nil
	})
}
