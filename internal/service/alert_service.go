package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ledger_engine/internal/domain"
)

type AlertType string

const (
	AlertEmail   AlertType = "email"
	AlertWebhook AlertType = "webhook"
)

// AlertService delivers account alerts raised during a run (for now, only
// chargeback locks) to the configured sinks. Delivery is queued and drained
// on shutdown so the engine's single pass is never blocked by a slow sink.
type AlertService struct {
	emailSink    EmailSink
	webhookSink  WebhookSink
	messageQueue chan AlertMessage
	workers      int
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	logger       *slog.Logger
}

type AlertMessage struct {
	Type      AlertType
	Recipient string
	Subject   string
	Message   string
	Metadata  map[string]string
	CreatedAt time.Time
}

type EmailSink interface {
	SendEmail(to, subject, body string) error
}

type WebhookSink interface {
	Post(endpoint, payload string) error
}

func NewAlertService(
	emailSink EmailSink,
	webhookSink WebhookSink,
	workers int,
	logger *slog.Logger,
) *AlertService {
	if logger == nil {
		logger = slog.Default()
	}

	service := &AlertService{
		emailSink:    emailSink,
		webhookSink:  webhookSink,
		messageQueue: make(chan AlertMessage, 1000),
		workers:      workers,
		shutdownChan: make(chan struct{}),
		logger:       logger,
	}

	service.startWorkers()

	return service
}

// SendAccountLockedAlert notifies operations that a chargeback froze a
// client account, leaving any still-open disputes parked for manual review.
func (s *AlertService) SendAccountLockedAlert(ctx context.Context, client *domain.Client, txID uint32) error {
	message := fmt.Sprintf(
		"Account %d locked by chargeback on transaction %d. Balances: available=%s held=%s total=%s.",
		client.ID, txID, client.Available, client.Held, client.Total,
	)

	alerts := []AlertMessage{
		{
			Type:      AlertWebhook,
			Recipient: "/hooks/account-locks",
			Subject:   "Account locked",
			Message:   message,
			Metadata: map[string]string{
				"client": fmt.Sprintf("%d", client.ID),
				"tx":     fmt.Sprintf("%d", txID),
			},
			CreatedAt: time.Now(),
		},
		{
			Type:      AlertEmail,
			Recipient: "reconciliation@example.com",
			Subject:   fmt.Sprintf("Account locked: client %d", client.ID),
			Message:   message,
			Metadata: map[string]string{
				"client": fmt.Sprintf("%d", client.ID),
			},
			CreatedAt: time.Now(),
		},
	}

	for _, alert := range alerts {
		select {
		case s.messageQueue <- alert:
			s.logger.Info("Alert queued",
				slog.String("type", string(alert.Type)),
				slog.Uint64("client", uint64(client.ID)),
				slog.Uint64("tx", uint64(txID)))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

func (s *AlertService) startWorkers() {
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

func (s *AlertService) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case msg := <-s.messageQueue:
			s.processAlert(msg, id)
		case <-s.shutdownChan:
			// Drain whatever was queued before the shutdown signal.
			for {
				select {
				case msg := <-s.messageQueue:
					s.processAlert(msg, id)
				default:
					return
				}
			}
		}
	}
}

func (s *AlertService) processAlert(msg AlertMessage, workerID int) {
	var err error

	switch msg.Type {
	case AlertEmail:
		err = s.emailSink.SendEmail(msg.Recipient, msg.Subject, msg.Message)
	case AlertWebhook:
		err = s.webhookSink.Post(msg.Recipient, msg.Message)
	default:
		err = fmt.Errorf("unknown alert type: %s", msg.Type)
	}

	if err != nil {
		s.logger.Error("Failed to deliver alert",
			slog.String("type", string(msg.Type)),
			slog.String("recipient", msg.Recipient),
			slog.String("error", err.Error()),
			slog.Int("worker_id", workerID))
		return
	}

	s.logger.Info("Alert delivered",
		slog.String("type", string(msg.Type)),
		slog.String("recipient", msg.Recipient),
		slog.Int("worker_id", workerID))
}

// Shutdown stops the workers after the queue has been handed off, waiting at
// most until ctx expires.
func (s *AlertService) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Alert service shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type MockEmailSink struct {
	mu         sync.Mutex
	SentEmails []struct {
		To      string
		Subject string
		Body    string
	}
}

func (m *MockEmailSink) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentEmails = append(m.SentEmails, struct {
		To      string
		Subject string
		Body    string
	}{to, subject, body})
	return nil
}

type LogWebhookSink struct {
	logger *slog.Logger
}

func NewLogWebhookSink(logger *slog.Logger) *LogWebhookSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogWebhookSink{logger: logger}
}

func (l *LogWebhookSink) Post(endpoint, payload string) error {
	l.logger.Info("Webhook alert",
		slog.String("endpoint", endpoint),
		slog.String("payload", payload))
	return nil
}
