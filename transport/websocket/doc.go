// Package websocket adapts gorilla/websocket connections to the realtime
// core.
//
// The websocket package implements:
//   - Token verification before the upgrade handshake
//   - Four endpoint subtypes sharing one registry and envelope format
//   - Per-connection read and write pumps with deadlines
//   - Buffered outbound sends with slow-peer failure
//   - Inbound rate limiting for the location endpoint
//
// Connection Lifecycle:
//
// 1. Client requests an upgrade with a bearer token
// 2. The token is verified; failures are rejected with 401 before upgrade
// 3. The upgraded socket is wrapped in a Client and registered with the hub
// 4. readPump feeds inbound frames to the dispatcher in FIFO order
// 5. A read error or deadline unregisters the connection and closes the socket
//
// Concurrency:
//
// Each connection runs two goroutines: readPump (socket to dispatcher) and
// writePump (send buffer to socket). Send never blocks; a full buffer is
// reported as an error and handled by the core as a liveness failure.
package websocket
