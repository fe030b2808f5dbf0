// Package docstore persists a single named collection of records as one
// whole file on a pluggable storage.FileSystem.
//
// An Adapter owns the full lifecycle of a collection:
//
//   - Register installs a change callback, creates the file with an empty
//     collection when it is missing and notifies the callback of existing data.
//   - Load decodes, optionally decrypts and validates the stored payload.
//   - Save reconciles a change set against a fresh load, encodes the result
//     and promotes it through a staging artifact that is verified before the
//     canonical file is replaced. Previous payloads can be kept as
//     timestamped backups.
//   - Unregister removes the callback.
//
// Encryption is a capability supplied by the caller (see Encrypter,
// Decrypter and the pkg/cipher package); the adapter enforces the policy
// around it. Non-fatal conditions are reported as Advisory values through
// the configured slog.Logger, AdvisoryHandler and activity hooks, while
// fatal ones are returned as *Error values matching the Err* kinds.
package docstore
