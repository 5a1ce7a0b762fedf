package core

// # Error Codes Reference
//
// Every error shown to a user carries a code that can be quoted to support.
// Codes are grouped by category:
//
// # Format Errors (FMT001-FMT099)
//
//	FMT001 - Unsupported format: Only .csv and .xlsx files are accepted
//	         Action: Save the file as CSV or Excel workbook (.xlsx) and upload it again
//	         Matches: format.ErrUnsupportedFormat, "unsupported file format"
//
// # Parse Errors (PARSE001-PARSE099)
//
//	PARSE001 - Unreadable file: The file could not be read as a table
//	           Action: Check that the first row holds column names and rows have consistent fields
//	           Matches: format.ErrParse, "failed to parse file"
//
// # Output Errors (CAP001, SER001)
//
//	CAP001 - Spreadsheet output unavailable: Excel output is not available on this server
//	         Action: Upload the data as CSV to download a cleaned copy
//	         Matches: format.ErrSpreadsheetUnavailable
//
//	SER001 - Write failure: The cleaned file could not be written
//	         Action: Please try again or contact support
//	         Matches: format.ErrSerialize
//
// # Column Errors (COL001-COL099)
//
//	COL001 - Unknown column: A selected column does not exist in the file
//	         Action: Pick columns from the file's preview and try again
//	         Matches: table.ErrUnknownColumn
//
// # Option Errors (OPT001-OPT099)
//
//	OPT001 - Invalid options: A column name is empty or an option is malformed
//	         Matches: ErrInvalidOptions
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum upload size
//	FILE002 - Too many files: More files than one request allows
//	FILE004 - No file: No file was selected
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL001 - Upload expired: A previewed file is no longer held for cleaning
//	UPL002 - System busy: Too many uploads in progress
//	UPL003 - Download expired: The cleaned file is no longer available
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error: An unexpected error occurred. Check the logs for
//	         the technical error.
//
// # Matching
//
// MapError first walks the error chain with errors.Is against the sentinel
// table, then falls back to case-insensitive substring patterns for errors
// that arrive as plain text (from net/http, for example). The first match
// wins in both tables.

import (
	"context"
	"errors"
	"strings"

	"github.com/JonMunkholm/cleaner/internal/format"
	"github.com/JonMunkholm/cleaner/internal/table"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgUnsupportedFormat = UserMessage{
		Message: "Unsupported file format",
		Action:  "Save the file as CSV or Excel workbook (.xlsx) and upload it again",
		Code:    "FMT001",
	}
	msgParse = UserMessage{
		Message: "The file could not be read as a table",
		Action:  "Check that the first row holds column names and rows have consistent fields",
		Code:    "PARSE001",
	}
	msgSpreadsheetUnavailable = UserMessage{
		Message: "Excel output is not available on this server",
		Action:  "Upload the data as CSV to download a cleaned copy",
		Code:    "CAP001",
	}
	msgSerialize = UserMessage{
		Message: "The cleaned file could not be written",
		Action:  "Please try again or contact support",
		Code:    "SER001",
	}
	msgUnknownColumn = UserMessage{
		Message: "A selected column does not exist in the file",
		Action:  "Pick columns from the file's preview and try again",
		Code:    "COL001",
	}
	msgInvalidOptions = UserMessage{
		Message: "The cleaning options are not valid",
		Action:  "Check the selected columns and try again",
		Code:    "OPT001",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Remove unneeded rows or columns, or split the file",
		Code:    "FILE001",
	}
	msgTooManyFiles = UserMessage{
		Message: "Too many files in one request",
		Action:  "Upload fewer files at a time",
		Code:    "FILE002",
	}
	msgNoFile = UserMessage{
		Message: "No file was selected",
		Action:  "Please select a CSV or Excel file to upload",
		Code:    "FILE004",
	}
	msgUploadExpired = UserMessage{
		Message: "The uploaded file is no longer available",
		Action:  "Upload the file again to choose its cleaning options",
		Code:    "UPL001",
	}
	msgBusy = UserMessage{
		Message: "Too many uploads in progress",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}
	msgDownloadExpired = UserMessage{
		Message: "The cleaned file is no longer available",
		Action:  "Upload the file again to get a new download",
		Code:    "UPL003",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or check your connection",
		Code:    "UPL005",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}
)

// sentinelMessages maps wrapped sentinel errors to user messages.
// ErrSpreadsheetUnavailable must come before ErrSerialize: the serializer
// may wrap both.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{format.ErrUnsupportedFormat, msgUnsupportedFormat},
	{format.ErrParse, msgParse},
	{format.ErrSpreadsheetUnavailable, msgSpreadsheetUnavailable},
	{format.ErrSerialize, msgSerialize},
	{table.ErrUnknownColumn, msgUnknownColumn},
	{ErrInvalidOptions, msgInvalidOptions},
	{ErrFileTooLarge, msgFileTooLarge},
	{ErrTooManyFiles, msgTooManyFiles},
	{ErrNoFiles, msgNoFile},
	{ErrTooManyUploads, msgBusy},
	{ErrUploadExpired, msgUploadExpired},
	{ErrArtifactNotFound, msgDownloadExpired},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// Specific patterns come before general ones.
var errorPatterns = []errorPattern{
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "too many files", msg: msgTooManyFiles},
	{pattern: "no file provided", msg: msgNoFile},
	{pattern: "unsupported file format", msg: msgUnsupportedFormat},
	{pattern: "failed to parse file", msg: msgParse},
	{pattern: "too many uploads", msg: msgBusy},
	{pattern: "rate limit", msg: msgRateLimited},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. If nothing
// matches, the generic ERR000 message is returned.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback. Technical detail of such errors is safe to show.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
