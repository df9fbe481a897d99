// Package engine parses, validates, and executes operations against a
// schema registry.
//
// # Overview
//
// The engine is the read path of the observability API. A client submits an
// operation document; the engine turns it into a structured result envelope
// in four stages:
//
//	┌──────────┐   ┌───────────┐   ┌──────────┐   ┌───────────┐
//	│  Parse   │ → │ Validate  │ → │ Resolve  │ → │ Envelope  │
//	│ document │   │ arguments │   │  fields  │   │ data+errs │
//	└──────────┘   └───────────┘   └──────────┘   └───────────┘
//
// Parse selects the requested operation, coerces variables, and enforces
// the nesting-depth bound. Validation coerces each field's arguments
// against the registry's declared constraints (type, range, pattern,
// defaults, required-ness) in declaration order, reporting the first
// violation. Resolution walks the selection set depth-first, invoking one
// resolver per requested field.
//
// # Partial Failure
//
// A resolver failure below the root never aborts the operation. The failing
// field's value becomes null, an error carrying the field's response path is
// appended to the envelope, and sibling resolution continues. Null
// propagates upward only through non-null declarations, stopping at the
// first nullable ancestor.
//
// Root-level failures are different: an unknown root field or a root
// argument that fails validation rejects the whole operation before any
// resolver runs, so an invalid mutation cannot take partial effect.
//
// # Subscriptions
//
// For subscription operations the executor contributes two pieces:
// SubscriptionField extracts and validates the operation's single root
// field, and ResolveEmission completes one event-source emission through
// that field's selection set. The streaming lifecycle itself lives in the
// subscription package.
//
// # Error Handling
//
// Following the errors package patterns:
//
//   - WrapInvalid: syntax errors, unknown operations, depth violations,
//     argument validation failures
//   - Field-level errors: resolver failures, encode failures, non-null
//     violations, recorded in the envelope rather than returned
package engine
