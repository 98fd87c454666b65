// Package ir provides the value and directive types shared by every novella package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Tag is immutable: fields are unexported and accessors return copies
//   - Shortcut expansion produces a new Tag, it never edits one in place
//   - Ticks are int64 logical time supplied by the host, never wall-clock time
//   - Canonical JSON (MarshalCanonical) is used for persisted snapshots and golden traces
package ir
