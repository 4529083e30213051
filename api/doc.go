// Package api provides the HTTP surface of the raceline realtime server.
//
// The api package implements:
//   - Routing for the four websocket endpoint subtypes
//   - Internal notification endpoints used by the REST CRUD service
//   - Health and Prometheus metrics endpoints
//
// The CRUD routes themselves (races, users, vehicles, friends) live in a
// separate service; after a successful mutation it pushes the resulting
// event here via POST /internal/notify/users/{id} or
// POST /internal/notify/races/{id}. Both return 202 regardless of whether
// the target was online — delivery is best effort by contract.
package api
