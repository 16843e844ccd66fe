// Package notify implements the notification port. The default sink
// writes structured log lines; real deployments point it at the ERP's
// notification table or a message broker.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// ZapNotifier logs each notification. Implements port.Notifier.
type ZapNotifier struct {
	logger *zap.Logger
}

// NewZapNotifier creates the logging notifier.
func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	return &ZapNotifier{logger: logger}
}

// Notify emits the notification as a structured log line.
func (n *ZapNotifier) Notify(_ context.Context, userID string, payload map[string]any) error {
	n.logger.Info("user notification",
		zap.String("user_id", userID),
		zap.Any("payload", payload),
	)
	return nil
}
