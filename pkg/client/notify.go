package client

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// NotificationLevel classifies a notification.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
)

// Notification is a transient user-facing message.
type Notification struct {
	ID      int
	Level   NotificationLevel
	Message string
	At      time.Time
}

// Notifier is a notification center with auto-dismissal. Each notification
// is dismissed after the configured interval unless it is dismissed (or the
// center closed) first.
type Notifier struct {
	mu      sync.Mutex
	clk     clock.Clock
	ttl     time.Duration
	nextID  int
	items   []Notification
	timers  map[int]*clock.Timer
	subs    map[int]func([]Notification)
	nextSub int
	closed  bool
}

// NewNotifier builds a notifier. A non-positive ttl defaults to five seconds.
func NewNotifier(clk clock.Clock, ttl time.Duration) *Notifier {
	if clk == nil {
		clk = clock.New()
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Notifier{
		clk:    clk,
		ttl:    ttl,
		timers: make(map[int]*clock.Timer),
		subs:   make(map[int]func([]Notification)),
	}
}

// Success pushes a success notification.
func (n *Notifier) Success(message string) int {
	return n.push(LevelSuccess, message)
}

// Error pushes an error notification.
func (n *Notifier) Error(message string) int {
	return n.push(LevelError, message)
}

// Dismiss removes a notification and cancels its auto-dismiss timer.
func (n *Notifier) Dismiss(id int) {
	n.mu.Lock()
	n.removeLocked(id)
	items := n.itemsLocked()
	subs := n.subsLocked()
	n.mu.Unlock()
	notify(subs, items)
}

// Active returns the notifications not yet dismissed.
func (n *Notifier) Active() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.itemsLocked()
}

// Subscribe registers a callback invoked whenever the notification set
// changes. The returned function removes the subscription.
func (n *Notifier) Subscribe(fn func([]Notification)) func() {
	n.mu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = fn
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.subs, id)
		n.mu.Unlock()
	}
}

// Close cancels every pending timer and drops all notifications.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	for id, timer := range n.timers {
		timer.Stop()
		delete(n.timers, id)
	}
	n.items = nil
	subs := n.subsLocked()
	n.mu.Unlock()
	notify(subs, nil)
}

func (n *Notifier) push(level NotificationLevel, message string) int {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return -1
	}
	id := n.nextID
	n.nextID++
	n.items = append(n.items, Notification{ID: id, Level: level, Message: message, At: n.clk.Now()})
	n.timers[id] = n.clk.AfterFunc(n.ttl, func() { n.Dismiss(id) })
	items := n.itemsLocked()
	subs := n.subsLocked()
	n.mu.Unlock()

	notify(subs, items)
	return id
}

func (n *Notifier) removeLocked(id int) {
	if timer, ok := n.timers[id]; ok {
		timer.Stop()
		delete(n.timers, id)
	}
	out := n.items[:0]
	for _, item := range n.items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	n.items = out
}

func (n *Notifier) itemsLocked() []Notification {
	items := make([]Notification, len(n.items))
	copy(items, n.items)
	return items
}

func (n *Notifier) subsLocked() []func([]Notification) {
	subs := make([]func([]Notification), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func([]Notification), items []Notification) {
	for _, fn := range subs {
		fn(items)
	}
}
