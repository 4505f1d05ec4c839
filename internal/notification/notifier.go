// Package notification delivers price alerts to external channels
// (webhooks, logs) when the weekly rewarm detects a strong buy or
// sell signal on a product.
package notification

import (
	"context"
	"fmt"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Product string     `json:"product"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// PriceAlert builds an alert for a product whose weekly analysis
// produced a buy/sell signal. Sell signals are warnings (margin at
// risk for buyers), buy signals informational.
func PriceAlert(product, signal string, currentPrice, changePct float64) Alert {
	level := AlertInfo
	if signal == "strong sell" {
		level = AlertWarning
	}
	return Alert{
		Level:   level,
		Product: product,
		Title:   fmt.Sprintf("%s: %s", product, signal),
		Message: fmt.Sprintf("%s signals %s at %.0f (%+.1f%% week over week)",
			product, signal, currentPrice, changePct),
	}
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for
// development and when no webhook is configured).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}
