package auth

import "log"

// Notifier receives the transient user-facing messages every auth operation
// produces. The UI layer supplies its own; the default just logs.
type Notifier interface {
	Success(message string)
	Error(message string)
}

type logNotifier struct{}

func (logNotifier) Success(message string) { log.Printf("auth: %s", message) }
func (logNotifier) Error(message string)   { log.Printf("auth error: %s", message) }
