// Package transport connects byte streams to the protocol engine.
//
// Each transport owns one protocol.Session and pumps received bytes into
// it; responses flow back out through the session's writer. Transports are
// deliberately thin: framing, mode state, and command dispatch all live in
// the protocol package, so a transport only has to move bytes.
//
// Three transports are provided:
//
//   - Serial: a physical port via go.bug.st/serial, with automatic
//     reopen when the cable drops
//   - TCP: a listener accepting any number of concurrent controllers,
//     one session per connection
//   - MQTT: a broker bridge mapping the command topic to session input
//     and session output to the response topic
//
// All transports run until their context is cancelled.
package transport
