package board

import "fmt"

type Level int

const (
	LevelInfo Level = iota
	LevelError
)

func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notification is a transient message for the user. Err is set for failures.
type Notification struct {
	Level   Level
	Message string
	Err     error
}

func (n Notification) String() string {
	if n.Err != nil {
		return fmt.Sprintf("%s: %v", n.Message, n.Err)
	}
	return n.Message
}

// Notifier shows notifications to the user.
type Notifier interface {
	Notify(Notification)
}

type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discard struct{}

func (discard) Notify(Notification) {}

func orDiscard(n Notifier) Notifier {
	if n == nil {
		return discard{}
	}
	return n
}

func failure(n Notifier, err error, format string, args ...any) {
	n.Notify(Notification{Level: LevelError, Message: fmt.Sprintf(format, args...), Err: err})
}
