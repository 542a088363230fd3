// Package core is the workbench service: it binds the dataset of a session
// to the loader, the analysis modules, the transformations and the export
// builder.
//
// This package holds no transport logic. Web handlers and the CLI call the
// same [Service] methods, passing a context and a session id.
//
// # Session lifecycle
//
// A session starts empty. [Service.LoadDataset] parses an upload and stores
// the first (table, metadata) pair. Every transformation reads the current
// pair, computes a new one and replaces it atomically under the session's
// lock; a failing transformation leaves the session untouched.
// [Service.ClearDataset] returns the session to empty. Analyses and exports
// only read.
//
// # Modules
//
// The workbench offers a fixed set of modules (overview, missing values,
// univariate, bivariate, correlation, outliers, preprocessing, recipes,
// export). Each module is a closed set of [Operation] values registered at
// init; see [Modules].
//
// # Error Handling
//
// Domain errors are sentinels from the dataset package wrapped with context.
// [MapError] turns them into user-facing messages with support codes:
//
//   - FILE001-FILE099: upload and parse errors
//   - SEL001-SEL099: column selection and option errors
//   - SES001-SES099: session state errors
//   - UPL001-UPL099: load slots, cancellation and timeouts
//   - RATE001: rate limiting
//   - ERR000: anything else
//
// # Audit Logging
//
// Every session mutation is recorded in the audit log with a severity:
//
//   - Low: exports
//   - Medium: missing-value and outlier treatments
//   - High: loads, preprocessing and recipes
//   - Critical: clearing a session
//
// Old audit entries are purged by the maintenance job together with idle
// sessions.
package core
