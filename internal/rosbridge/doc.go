// Package rosbridge is a websocket client for the rosbridge v2 JSON protocol.
//
// Dial returns immediately and connects in the background; callers poll
// IsConnected/IsErrored. Subscriptions and advertisements registered on the
// client survive reconnects and are replayed on every new connection.
// Inbound topic messages are dispatched from the single read loop, so each
// topic's handlers see messages serialized and in order.
package rosbridge
