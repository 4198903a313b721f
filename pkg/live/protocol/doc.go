// Package protocol defines the wire types exchanged with the remote voice
// endpoint over a duplex websocket connection.
//
// A session begins with a client Setup frame and is acknowledged by a
// SetupComplete frame; after that the client streams RealtimeInput frames
// carrying transport-text-encoded PCM16 audio while the server streams
// ServerContent frames carrying any combination of transcript fragments,
// turn-completion and interruption signals, and synthesized audio.
//
// The package also classifies websocket close codes, including the
// distinguished quota-rejection close the remote service uses to signal
// that billing must be enabled.
package protocol
