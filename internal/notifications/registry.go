package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"ynetwork/internal/observability"

	"github.com/gofiber/websocket/v2"
)

// Server-to-client event types.
const (
	EventNewMessage      = "newMessage"
	EventNewConversation = "newConversation"
	EventNewNotification = "newNotification"
	EventGetOnlineUsers  = "getOnlineUsers"
)

const (
	defaultMaxClients = 10000
	hubName           = "presence"
)

var (
	// ErrRegistryFull is returned when the instance holds its maximum number of connections.
	ErrRegistryFull = errors.New("server connection limit reached")
	// ErrRegistryClosed is returned after Shutdown.
	ErrRegistryClosed = errors.New("registry is shutting down")
)

// Event is the envelope written to websocket clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// OnlineUsersPayload is the payload of a getOnlineUsers event.
type OnlineUsersPayload struct {
	UserIDs []uint `json:"user_ids"`
}

// Registry holds at most one live connection per user and delivers events to them.
// When a Notifier is configured, events travel through Redis so the instance holding
// the recipient's connection delivers them.
type Registry struct {
	mu         sync.RWMutex
	clients    map[uint]*Handle
	maxClients int
	closed     bool

	presence *PresenceMirror
	notifier *Notifier
	wsLog    *observability.WSLogger
}

// NewRegistry creates an empty registry. presence and notifier may be nil.
func NewRegistry(presence *PresenceMirror, notifier *Notifier) *Registry {
	if presence == nil {
		presence = NewPresenceMirror(nil, PresenceMirrorConfig{})
	}
	r := &Registry{
		clients:    make(map[uint]*Handle),
		maxClients: defaultMaxClients,
		presence:   presence,
		notifier:   notifier,
	}
	r.wsLog = observability.NewWSLogger(hubName)
	return r
}

// Register makes a new handle current for userID, replacing and closing any
// previous one, then announces the online list. The caller runs Serve on it.
func (r *Registry) Register(ctx context.Context, userID uint, conn *websocket.Conn) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	prev, replacing := r.clients[userID]
	if !replacing && len(r.clients) >= r.maxClients {
		r.mu.Unlock()
		return nil, ErrRegistryFull
	}

	h := newHandle(userID, conn)
	h.release = r.Unregister
	h.touch = func() { r.presence.Touch(context.Background(), userID) }
	r.clients[userID] = h
	observability.PresenceOnlineUsers.Set(float64(len(r.clients)))
	r.mu.Unlock()

	if replacing {
		prev.closeWith(closeSuperseded)
	} else {
		observability.WebSocketConnectionsTotal.Inc()
	}

	r.presence.Touch(ctx, userID)
	r.wsLog.Connected(ctx, userID)
	r.BroadcastOnlineUsers(ctx)
	return h, nil
}

// Unregister removes h only if it is still the current handle for its user.
// A disconnect from a superseded connection leaves the newer one in place.
func (r *Registry) Unregister(h *Handle) {
	defer h.Close()

	r.mu.Lock()
	if current, ok := r.clients[h.UserID]; !ok || current != h {
		r.mu.Unlock()
		return
	}
	delete(r.clients, h.UserID)
	observability.PresenceOnlineUsers.Set(float64(len(r.clients)))
	r.mu.Unlock()

	observability.WebSocketConnectionsTotal.Dec()
	ctx := context.Background()
	r.presence.Remove(ctx, h.UserID)
	r.wsLog.Disconnected(ctx, h.UserID, "closed")
	r.BroadcastOnlineUsers(ctx)
}

// Lookup returns the current handle for userID.
func (r *Registry) Lookup(userID uint) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

// IsOnline reports whether userID has a live connection on this instance.
func (r *Registry) IsOnline(userID uint) bool {
	_, ok := r.Lookup(userID)
	return ok
}

func (r *Registry) localUserIDs() []uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]uint, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// OnlineUserIDs returns local users together with those mirrored in Redis, sorted ascending.
func (r *Registry) OnlineUserIDs(ctx context.Context) []uint {
	ids := r.localUserIDs()
	mirrored, err := r.presence.OnlineUserIDs(ctx)
	if err != nil {
		observability.GlobalLogger.WarnContext(ctx, "presence mirror unavailable", slog.String("error", err.Error()))
	}
	ids = append(ids, mirrored...)
	slices.Sort(ids)
	return slices.Compact(ids)
}

// BroadcastOnlineUsers sends the current online list to every connected client.
func (r *Registry) BroadcastOnlineUsers(ctx context.Context) {
	r.Broadcast(ctx, EventGetOnlineUsers, OnlineUsersPayload{UserIDs: r.OnlineUserIDs(ctx)})
}

// Emit sends an event to one user. Delivery is best effort: offline users and
// encoding or publish failures are logged and otherwise ignored.
func (r *Registry) Emit(ctx context.Context, userID uint, eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		r.wsLog.Failed(ctx, userID, eventType, err)
		return
	}
	observability.RecordWebSocketEvent(eventType)

	if r.notifier.Enabled() {
		if err := r.notifier.PublishUser(ctx, userID, data); err == nil {
			return
		}
		r.wsLog.Failed(ctx, userID, eventType, err)
	}
	r.deliver(userID, data)
}

// Broadcast sends an event to every connected user.
func (r *Registry) Broadcast(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		r.wsLog.Failed(ctx, 0, eventType, err)
		return
	}
	observability.RecordWebSocketEvent(eventType)

	if r.notifier.Enabled() {
		if err := r.notifier.PublishBroadcast(ctx, data); err == nil {
			return
		}
		r.wsLog.Failed(ctx, 0, eventType, err)
	}
	r.deliverAll(data)
}

func (r *Registry) deliver(userID uint, data []byte) bool {
	h, ok := r.Lookup(userID)
	if !ok {
		return false
	}
	return h.Queue(data)
}

func (r *Registry) deliverAll(data []byte) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, h := range r.clients {
		h.Queue(data)
	}
}

// StartWiring subscribes to the Notifier's channels and delivers what arrives to local clients.
func (r *Registry) StartWiring(ctx context.Context) error {
	if !r.notifier.Enabled() {
		return nil
	}
	return r.notifier.Subscribe(ctx, func(d Delivery) {
		if d.Broadcast() {
			r.deliverAll(d.Data)
			return
		}
		r.deliver(d.UserID, d.Data)
	})
}

// Shutdown closes every handle and refuses new registrations.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	clients := r.clients
	r.clients = make(map[uint]*Handle)
	observability.PresenceOnlineUsers.Set(0)
	r.mu.Unlock()

	for userID, h := range clients {
		h.closeWith(closeShutdown)
		observability.WebSocketConnectionsTotal.Dec()
		r.presence.Remove(ctx, userID)
	}
	r.presence.Stop()
	return nil
}
