package webhooks

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bartossh/Paygate/httpclient"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/reactive"
)

const (
	defaultActiveWindow = 30 * time.Second
	defaultHookTimeout  = 5 * time.Second
	subscriberBuffer    = 16
)

var (
	ErrInvalidHookURL = errors.New("hook url is invalid")
	ErrEmptyAddress   = errors.New("address is empty")
)

// Config contains the activity hub configuration.
type Config struct {
	ActiveWindow time.Duration `yaml:"active_window"` // Time after the last node notification during which push mode is used.
	HookTimeout  time.Duration `yaml:"hook_timeout"`  // Timeout of a single post to a registered hook.
}

// Notification is a node report about a block touching Account or Link.
type Notification struct {
	Hash    string    `json:"hash"`
	Account string    `json:"account"`
	Link    string    `json:"link_as_account"`
	Amount  string    `json:"amount"`
	Subtype string    `json:"subtype"`
	Time    time.Time `json:"time"`
}

// Concerns reports whether the notification is about the address.
func (n Notification) Concerns(addr string) bool {
	return addr != "" && (n.Account == addr || n.Link == addr)
}

// Activity is the time of the last node notification.
type Activity struct {
	last   int64
	mux    sync.RWMutex
	window time.Duration
}

// Touch records activity at time t. Time never moves backwards.
func (a *Activity) Touch(t time.Time) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if ns := t.UnixNano(); ns > a.last {
		a.last = ns
	}
}

// Active reports whether the last activity happened within the window before now.
func (a *Activity) Active(now time.Time) bool {
	a.mux.RLock()
	defer a.mux.RUnlock()
	if a.last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, a.last)) <= a.window
}

// Hook is the merchant endpoint notified about activity of a watched address.
type Hook struct {
	URL   string `json:"url"`   // URL is a url of the webhook.
	Token string `json:"token"` // Token is added to every message to let the receiver verify the source.
}

// HookMessage is posted to the hook url.
type HookMessage struct {
	Token        string       `json:"token"`
	Notification Notification `json:"notification"`
}

// Hub receives node activity notifications, keeps the activity state fresh and fans the
// notifications out to subscribers and to registered hooks.
type Hub struct {
	activity *Activity
	obs      *reactive.Observable[Notification]
	mux      sync.RWMutex
	hooks    map[string]Hook
	timeout  time.Duration
	now      func() time.Time
	log      logger.Logger
}

// New creates a new Hub.
func New(cfg Config, log logger.Logger) *Hub {
	if cfg.ActiveWindow <= 0 {
		cfg.ActiveWindow = defaultActiveWindow
	}
	if cfg.HookTimeout <= 0 {
		cfg.HookTimeout = defaultHookTimeout
	}
	return &Hub{
		activity: &Activity{window: cfg.ActiveWindow},
		obs:      reactive.New[Notification](subscriberBuffer),
		hooks:    make(map[string]Hook),
		timeout:  cfg.HookTimeout,
		now:      time.Now,
		log:      log,
	}
}

// Notify records the activity and publishes the notification.
func (h *Hub) Notify(n Notification) {
	if n.Time.IsZero() {
		n.Time = h.now()
	}
	h.activity.Touch(h.now())
	h.obs.Publish(n)

	h.mux.RLock()
	defer h.mux.RUnlock()
	for _, addr := range []string{n.Account, n.Link} {
		if hook, ok := h.hooks[addr]; ok {
			go h.post(hook, n)
		}
	}
}

// Active reports whether node notifications arrived recently enough to rely on them.
func (h *Hub) Active() bool {
	return h.activity.Active(h.now())
}

// Subscribe subscribes to all notifications. The subscriber must be canceled when no longer needed.
func (h *Hub) Subscribe() *reactive.Subscriber[Notification] {
	return h.obs.Subscribe()
}

// CreateWebhook creates or replaces the hook notified about activity of the address.
func (h *Hub) CreateWebhook(addr string, hook Hook) error {
	if addr == "" {
		return ErrEmptyAddress
	}
	u, err := url.Parse(hook.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Join(ErrInvalidHookURL, fmt.Errorf("url %q", hook.URL))
	}
	h.mux.Lock()
	defer h.mux.Unlock()
	h.hooks[addr] = hook
	return nil
}

// RemoveWebhook removes the hook of the address.
func (h *Hub) RemoveWebhook(addr string) {
	h.mux.Lock()
	defer h.mux.Unlock()
	delete(h.hooks, addr)
}

func (h *Hub) post(hook Hook, n Notification) {
	msg := HookMessage{Token: hook.Token, Notification: n}
	if err := httpclient.MakePost(h.timeout, hook.URL, msg, nil); err != nil {
		h.log.Error(fmt.Sprintf("webhook hub error posting notification %s to url: %s, %s", n.Hash, hook.URL, err.Error()))
	}
}
