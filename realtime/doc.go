// Package realtime implements the connection and room broadcast core of the
// raceline server.
//
// The realtime package implements:
//   - Connection registry with per-user last-connect-wins mapping
//   - Room membership keyed by race id, with lazy creation and pruning
//   - Type-tag dispatch of inbound client messages
//   - Best-effort fan-out to rooms, users and endpoint subtypes
//   - Application-level heartbeat with ping/pong liveness tracking
//
// Architecture:
//
// The Hub is the single owner of all mutable shared state: the connection
// map, the room index, and the user index. Every mutation happens under one
// lock, so removing a connection is atomic across all three from the point
// of view of any concurrent broadcast. Transports hand the hub a Channel (a
// duplex byte stream) and an already-verified identity; the hub never sees
// raw sockets or tokens.
//
// Delivery Semantics:
//
// All sends are fire-and-forget. A failed send is treated exactly like a
// liveness failure: the connection is scheduled for cleanup and no error
// reaches the caller. Broadcasting to an absent room or an offline user is a
// silent no-op. There is no durable queueing and no cross-connection
// ordering guarantee; messages to one connection are delivered FIFO.
//
// Usage:
//
//	hub := realtime.NewHub(logger, realtime.NewMetrics())
//	dispatcher := realtime.NewDispatcher(hub, sink, logger)
//	go hub.RunHeartbeat(ctx, 30*time.Second)
//
//	conn := hub.Register(channel, realtime.SubtypeRace, identity)
//	dispatcher.Dispatch(conn.ID, raw)
//
// REST handlers push live events through NotifyUser/NotifyRoom and the typed
// helpers (race started, race completed, friend requests, invitations) after
// a successful mutation; an undeliverable notification never fails the
// request.
package realtime
