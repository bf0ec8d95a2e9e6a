// SPDX-License-Identifier: MIT
// Package transport carries analysis results off the device. Transports
// are fed from the worker context only, never from the tick path, and are
// expected to drop rather than block when a consumer is slow.
package transport

// Transport sends one frame of spectrum magnitudes to a consumer.
// Implementations must be safe for concurrent use and must not block the
// caller beyond a bounded enqueue.
type Transport interface {
	Send(magnitudes []float64) error
	Close() error
}

// Peer is the boundary to the peer-connection subsystem (the wireless
// audio sink). It exposes nothing but readiness; discovery, pairing and
// codecs live outside this module.
type Peer interface {
	Ready() bool
}

// StaticPeer is a Peer with a fixed readiness, used when no real peer
// subsystem is wired in.
type StaticPeer bool

func (p StaticPeer) Ready() bool { return bool(p) }
