// Package realtime keeps the live connections of every tasting room and fans
// state changes out to them.
//
// Delivery is at most once per connection: there is no replay queue, and a
// client that falls behind or disconnects must reconnect and take a fresh
// snapshot. Within one room, every client receives events in the order
// Broadcast was called.
package realtime

import "context"

// RoomRegistry tracks which clients are subscribed to which tasting and
// delivers events to them. The in-process LocalRegistry serves a single
// instance; RedisRegistry relays events between instances.
type RoomRegistry interface {
	// Register adds client to the room of tastingID
	Register(tastingID string, client *Client)
	// Unregister removes client from the room and closes it
	Unregister(tastingID string, client *Client)
	// Broadcast sends event to every client of the room. It never blocks on
	// a slow client and a failure to reach one client is not an error.
	Broadcast(ctx context.Context, tastingID string, event Event) error
	// RoomSize returns the number of clients connected to the room on this instance
	RoomSize(tastingID string) int
}
