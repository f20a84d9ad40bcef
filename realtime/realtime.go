package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/viberl/BlindTasting-sub000/metrics"
)

// LocalRegistry is the in-process RoomRegistry
type LocalRegistry struct {
	mu     sync.Mutex                      // protects rooms
	rooms  map[string]map[*Client]struct{} // tasting ID -> connected clients
	logger *slog.Logger
}

// NewLocalRegistry returns an empty registry
func NewLocalRegistry(logger *slog.Logger) *LocalRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalRegistry{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With("component", "realtime"),
	}
}

// Register adds a client to a specific tasting room
func (r *LocalRegistry) Register(tastingID string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[tastingID] == nil {
		r.rooms[tastingID] = make(map[*Client]struct{})
	}
	if _, exists := r.rooms[tastingID][client]; !exists {
		r.rooms[tastingID][client] = struct{}{}
		metrics.RealtimeConnections.Inc()
	}
}

// Unregister removes a client from a specific tasting room and closes it
func (r *LocalRegistry) Unregister(tastingID string, client *Client) {
	r.mu.Lock()
	r.removeLocked(tastingID, client)
	r.mu.Unlock()
	client.Close()
}

func (r *LocalRegistry) removeLocked(tastingID string, client *Client) {
	clients, exists := r.rooms[tastingID]
	if !exists {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	metrics.RealtimeConnections.Dec()
	if len(clients) == 0 {
		delete(r.rooms, tastingID)
	}
}

// Broadcast encodes event once and delivers it to every client of the room
func (r *LocalRegistry) Broadcast(ctx context.Context, tastingID string, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	r.Deliver(tastingID, data)
	metrics.BroadcastsTotal.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Deliver queues an already encoded message on every client of the room.
// Clients whose queue is full or that are closed are dropped from the room.
func (r *LocalRegistry) Deliver(tastingID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []*Client
	for client := range r.rooms[tastingID] {
		if !client.Send(data) {
			dropped = append(dropped, client)
		}
	}
	for _, client := range dropped {
		r.removeLocked(tastingID, client)
		client.Close()
		metrics.BroadcastDrops.Inc()
		r.logger.Warn("dropped realtime client", "tasting_id", tastingID, "user_id", client.UserID)
	}
}

// SendTo delivers event to a single client, e.g. a snapshot right after connect
func SendTo(client *Client, event Event) error {
	data, err := Encode(event)
	if err != nil {
		return err
	}
	if !client.Send(data) {
		return fmt.Errorf("client queue unavailable for %s", event.Type)
	}
	return nil
}

// RoomSize returns the number of clients connected to a tasting room
func (r *LocalRegistry) RoomSize(tastingID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[tastingID])
}

// Close disconnects every client of every room
func (r *LocalRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for tastingID, clients := range r.rooms {
		for client := range clients {
			r.removeLocked(tastingID, client)
			client.Close()
		}
	}
}

// Encode serializes an event for the wire
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}
	return data, nil
}
