// Package vector exposes a running data pipeline through a schema-typed
// query and streaming API.
//
// # Architecture
//
// The module is built from independent layers. A declarative schema
// registry types the API surface, a resolution engine executes operations
// against it, and a subscription engine streams typed emissions with
// bounded per-subscription queues. The gateway serves both over HTTP.
//
//	               +-------------------------------+
//	POST /graphql  | gateway                       |  WebSocket
//	--------------▶|  one-shot ops | subscriptions |◀--------------
//	               +-------+---------------+-------+
//	                       v               v
//	               +--------------+ +--------------+
//	               | engine       | | subscription |
//	               | parse /      | | sessions,    |
//	               | validate /   | | backpressure |
//	               | resolve      | | queues       |
//	               +-------+------+ +-------+------+
//	                       v                v
//	               +------------------------------+
//	               | schema registry + resolvers  |
//	               +---------------+--------------+
//	                               v
//	               +------------------------------+
//	               | pipeline (topology, health,  |
//	               | flow counters, change feed)  |
//	               +------------------------------+
//
// # Packages
//
//   - schema: declarative type registry with build-time integrity checks
//   - engine: operation parsing, argument validation, resolver dispatch,
//     partial-failure envelopes
//   - subscription: per-connection sessions, event sources, queue policies
//   - introspection: the meta-schema served through __schema and __type
//   - pipeline: the observed pipeline model and its API schema
//   - gateway/graphql: HTTP and WebSocket transport
//   - metric: Prometheus instrumentation
//   - natsclient: optional message bus tap for the busMessages subscription
//
// The cmd/vector-api binary wires everything together over a demo pipeline.
package vector
