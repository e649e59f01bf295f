// Package core runs pharmacy stock counting sessions.
//
// It holds the counting workflow independent of any transport. Web handlers,
// CLI tools and tests drive it the same way.
//
// # Architecture
//
// The package is organized around two layers:
//
//   - Engine: pure transitions over [State] ([Scan], [SubmitQuantity],
//     [InitiateRecount], [Finalize]). A transition never modifies its input
//     and a refused transition returns the input unchanged.
//   - Service: one live session per operator. It serializes transitions,
//     checkpoints every accepted one through a [Persister], journals every
//     operation and publishes finalized reports to a [ReportSink].
//
// # Workflow
//
//  1. [Service.Setup] parses the product and stock exports and starts a
//     session in the conference step.
//  2. Scans identify products; quantities are then submitted, or added one
//     unit per scan in accumulation mode.
//  3. With every item counted, divergences are reviewed. If any exist a
//     recount of exactly those items is required.
//  4. [Service.Finalize] produces the [Report] and, once it is stored,
//     clears the session.
//
// # Error Handling
//
// [ScanError] and [GateError] are recoverable: the session is unchanged.
// [MapError] turns any error into a coded [UserMessage]:
//
//   - SCN001-SCN004: scan and quantity errors
//   - GATE001-GATE005: refused workflow transitions
//   - ING001-ING003, CAT001-CAT002: unusable files
//   - VAL001-VAL003: setup form errors
//
// # Journal
//
// Every operation is recorded with a severity:
//
//   - Low: scans, review navigation, restores
//   - Medium: quantity entries
//   - High: setup, recount, finalize, report publish
//   - Critical: restart
package core
