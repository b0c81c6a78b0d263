package notify

import (
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// Urgency levels for notifications
type Urgency int

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

// Notification represents a desktop notification
type Notification struct {
	Title   string
	Body    string
	Urgency Urgency
	Timeout time.Duration
	Icon    string // Optional icon name
}

// Notifier handles sending desktop notifications
type Notifier struct {
	enabled bool
}

// NewNotifier creates a new notifier
func NewNotifier() *Notifier {
	return &Notifier{
		enabled: true,
	}
}

// SetEnabled enables or disables notifications
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled
func (n *Notifier) IsEnabled() bool {
	return n.enabled
}

// Send sends a desktop notification using notify-send
func (n *Notifier) Send(notification Notification) error {
	if !n.enabled {
		return nil
	}

	args := []string{}

	// Add urgency
	switch notification.Urgency {
	case UrgencyLow:
		args = append(args, "-u", "low")
	case UrgencyCritical:
		args = append(args, "-u", "critical")
	default:
		args = append(args, "-u", "normal")
	}

	// Add timeout (in milliseconds)
	if notification.Timeout > 0 {
		args = append(args, "-t", strconv.Itoa(int(notification.Timeout.Milliseconds())))
	}

	// Add icon if specified
	if notification.Icon != "" {
		args = append(args, "-i", notification.Icon)
	}

	// Add app name
	args = append(args, "-a", "kardo")

	// Add title and body
	args = append(args, notification.Title)
	if notification.Body != "" {
		args = append(args, notification.Body)
	}

	// Execute notify-send
	cmd := exec.Command("notify-send", args...)
	return cmd.Run()
}

// SendSimple sends a simple notification with title and body
func (n *Notifier) SendSimple(title, body string) error {
	return n.Send(Notification{
		Title:   title,
		Body:    body,
		Urgency: UrgencyNormal,
		Timeout: 5 * time.Second,
	})
}

// SendBlockedTooLong warns that a card has sat blocked past the threshold
func (n *Notifier) SendBlockedTooLong(cardKey string, blockedFor time.Duration) error {
	days := int(blockedFor.Hours() / 24)
	body := fmt.Sprintf("Blocked for %d days", days)
	if days < 1 {
		body = fmt.Sprintf("Blocked for %d hours", int(blockedFor.Hours()))
	}

	return n.Send(Notification{
		Title:   cardKey + " is blocked",
		Body:    body,
		Urgency: UrgencyCritical,
		Timeout: 15 * time.Second,
		Icon:    "emblem-important-symbolic",
	})
}

// SendSyncSummary reports the outcome of a ticket-system refresh sweep
func (n *Notifier) SendSyncSummary(refreshed, failed int64) error {
	body := fmt.Sprintf("%d cards refreshed", refreshed)
	urgency := UrgencyLow
	if failed > 0 {
		body = fmt.Sprintf("%d cards refreshed, %d failed", refreshed, failed)
		urgency = UrgencyNormal
	}

	return n.Send(Notification{
		Title:   "Ticket sync finished",
		Body:    body,
		Urgency: urgency,
		Timeout: 5 * time.Second,
		Icon:    "emblem-synchronizing-symbolic",
	})
}

// SendCardDone celebrates a card reaching the end of the workflow
func (n *Notifier) SendCardDone(cardKey string, cycleTime int) error {
	return n.Send(Notification{
		Title:   cardKey + " done",
		Body:    fmt.Sprintf("Cycle time: %d days", cycleTime),
		Urgency: UrgencyNormal,
		Timeout: 10 * time.Second,
		Icon:    "emblem-ok-symbolic",
	})
}
