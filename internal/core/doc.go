// Package core provides the activity-data import workflow.
//
// The package negotiates with a remote analysis service that parses
// spreadsheets, maps their columns to emission-factor keys and stores the
// resulting activities. It contains no transport or UI code; the web server
// and the terminal wizard both drive the same [Workflow].
//
// # Modes
//
// Three ingestion strategies are registered at init time (see [RegisterMode]):
//
//   - standard: template matching. Preview, then commit.
//   - unified: AI-assisted multi-sheet mapping. Preview per sheet, select
//     sheets, then commit.
//   - smart: AI-assisted single table. One request analyzes and commits; the
//     backend may finish the import asynchronously.
//
// # Workflow
//
// The [Workflow] moves through these states:
//
//	upload -> preview         -> importing -> result
//	upload -> unified-preview -> importing -> result
//	upload -> result                              (smart)
//
// A failed preview stays in upload; a failed commit returns to the preview it
// came from. [Workflow.Reset] returns to upload from anywhere. At most one
// [Outcome] (a preview or a result) is held at a time.
//
// The reporting period is read from [SharedState] once, when a file is
// selected. If it changed by commit time the commit is refused with a
// [ConflictError].
//
// # Side effects
//
// After a successful import, and only then, the workflow invalidates the
// activities, import-batches, report-summary and periods caches through
// [Invalidator] and records an [AuditEntry].
//
// # Ledger
//
// [Ledger] lists, expands and deletes import batches. Every delete asks a
// [Confirmer]; deleting all organization data additionally requires the
// typed token [OrganizationWipeToken].
//
// # Errors
//
// Client-side checks return [ValidationError] or [PreconditionError] before
// any request. Backend rejections are wrapped in [AnalysisError],
// [CommitError] or [LedgerError]. [Message] extracts the banner text and
// [MapError] a coded [UserMessage].
package core
