// Package core orchestrates schedule imports into a project.
//
// The package is independent of any transport. The web facade and tests drive
// it through [Service].
//
// # Lifecycle
//
// An import moves through these steps:
//
//  1. [Service.Upload] sniffs the format, checks that the project is empty and
//     not importing, stores the file in quarantine and waits for the malware
//     verdict. A safe file leaves quarantine and a PLANNING record is saved;
//     its version is the etag of the following calls.
//  2. [Service.Analyze] rebuilds the Import Model with the caller's column
//     choices and returns statistics and validation results.
//  3. [Service.EnqueueImport] moves the record to IN_PROGRESS and runs a job
//     on a bounded worker. The job rebuilds the model, converts blocking
//     validation results into preconditions and appends the events of one
//     business transaction, retrying transient failures.
//
// Progress of a job is broadcast to subscribers via [Service.SubscribeProgress].
//
// # Error Handling
//
// Blocking, user-facing problems are *importer.PreconditionError values with a
// stable message key. [MapError] turns any error into a [UserMessage] with a
// support code:
//
//   - IMP001-IMP009: import preconditions
//   - IMP101-IMP103: import session errors (stale etag, unknown record or job)
//   - DB, FILE, UPL, RATE: infrastructure errors
package core
