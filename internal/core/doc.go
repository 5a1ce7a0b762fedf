// Package core runs the table cleaning pipeline.
//
// It has no HTTP dependencies and can be driven by the web handlers, a
// command line tool or tests.
//
// # Pipeline
//
// Each uploaded file goes through the same steps, with the options of its
// own request:
//
//  1. the format is detected from the file name suffix
//  2. the bytes are parsed into a table.Table
//  3. missing numeric cells are optionally filled with the column mean
//  4. the table is optionally narrowed to the selected columns
//  5. the result is encoded in the upload's format and stored as an Artifact
//
// A failure at any step ends that file only. [Service.CleanBatch] returns one
// [FileResult] per upload, in upload order, each with a [Status] and, when
// something went wrong, a [UserMessage] carrying a support code.
//
// # Resources
//
// A [Limiter] bounds how many requests are cleaned at once. Cleaned files are
// kept in an [ArtifactStore] for a limited time so the browser can download
// them; nothing else about a table outlives the request.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code:
//
//   - FMT001: unsupported format
//   - PARSE001: unreadable file
//   - CAP001, SER001: output could not be produced
//   - COL001: unknown column selected
//   - OPT001: invalid options
//   - FILE001-FILE004: request file errors
//   - UPL001-UPL005: expired upload, busy, expired download, cancelled, timed out
package core
