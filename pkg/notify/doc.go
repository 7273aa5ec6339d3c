// Package notify hosts the push-based collaborator around the core driver.
//
// Responsibilities:
//   - Notifier[T] owns the single "current state" cell the driver reads
//     through, and is its only writer.
//   - Execute binds one driver step to the cell: every produced state is
//     committed to the cell synchronously before it is republished and before
//     the driver resumes, which keeps the id-based cancellation protocol
//     sound across interleaved Execute calls.
//   - Subscriptions receive every produced state in order over buffered
//     channels; slow consumers drop states rather than block production.
//
// The core updates package stays transport-agnostic; anything beyond an
// in-process channel (websockets, SSE, message buses) belongs in consumers of
// this package.
package notify
