// Package api provides the HTTP REST API and WebSocket server for Hearth
// Core.
//
// The REST surface exposes device registry reads, sensor reading history,
// command dispatch and OTA firmware metadata. The WebSocket Hub is the
// fan-out side of the event bridge: clients subscribe to topics
// (device:<id>, sensor:<id>) and receive state updates pushed by the
// bridge as they commit.
//
// Lifecycle follows the same pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
