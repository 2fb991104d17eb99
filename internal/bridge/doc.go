// Package bridge binds local bus topics to topics on a remote rosbridge peer.
//
// A Session waits for the transport to connect, snapshots the remote topic
// catalog, then creates one OutboundChannel (remote to local) per outbound
// binding and one InboundChannel (local to remote) per inbound binding.
// Frame identifiers are namespaced on the way in and un-namespaced on the
// way out; see package rewrite.
package bridge
