package notification

import (
	"context"
	"strconv"

	"ridehail/internal/logger"
	"ridehail/internal/types"
)

// LogSender writes every message to the structured log.
type LogSender struct {
	log logger.ILogger
}

func NewLogSender(log logger.ILogger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info("notification",
		logger.String("kind", string(msg.Kind)),
		logger.String("ride_id", string(msg.RideID)),
		logger.String("user_id", string(msg.Recipient.UserID)),
		logger.String("role", string(msg.Recipient.Role)),
		logger.String("body", msg.Body),
	)
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatMajor(m types.Money) string {
	return strconv.FormatFloat(m.Major(), 'f', 2, 64)
}
