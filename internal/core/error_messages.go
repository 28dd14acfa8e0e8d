package core

// error_messages.go maps technical errors to operator-facing messages with
// a support code. Operators quote the code; support looks it up here.
//
// Codes by category:
//
//	VAL001-VAL006  row and header validation
//	MAT001         catalog lookup
//	RES001-RES003  resolution workflow (resolve, undo, manual add)
//	COM001-COM007  commit pipeline
//	SES001-SES003  import sessions and modes
//	FILE001-FILE003 uploaded file
//	DB001-DB007    database
//	RATE001        request throttling
//	ERR000         anything else; check the logs for the technical error
//
// Known sentinel and typed errors are matched first with errors.Is/As. Other
// errors fall back to case-insensitive substring patterns, first match wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage is what an operator sees for an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorMatch struct {
	is  func(error) bool
	msg UserMessage
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// errorMatches is checked before the text patterns. Order matters: the
// first match wins.
var errorMatches = []errorMatch{
	{
		is: func(err error) bool {
			var pe *ResolutionPreconditionError
			return errors.As(err, &pe)
		},
		msg: UserMessage{"This action does not apply to the record in its current state", "Refresh the list and check the record's status", "RES001"},
	},
	{isErr(ErrRecordNotFound), UserMessage{"Record not found in this import", "Refresh the list; it may have been removed or committed", "RES002"}},
	{isErr(ErrProductNotFound), UserMessage{"Catalog product not found", "Search the catalog again and pick an existing product", "RES003"}},
	{isErr(ErrSkippedNotAcknowledged), UserMessage{"Some records will not be imported", "Review the similar and invalid rows, then confirm to commit the rest", "COM001"}},
	{isErr(ErrTooManyCommits), UserMessage{"Other imports are being committed", "Please wait a moment and try again", "COM002"}},
	{
		is: func(err error) bool {
			var be *CommitBatchError
			return errors.As(err, &be) && be.Retryable()
		},
		msg: UserMessage{"The inventory store did not respond in time", "Committed rows are saved; retry to commit the remaining rows", "COM004"},
	},
	{
		is: func(err error) bool {
			var be *CommitBatchError
			return errors.As(err, &be) && !errors.Is(err, context.Canceled)
		},
		msg: UserMessage{"A batch was rejected by the inventory store", "Committed rows are saved; fix or remove the failed rows and retry", "COM003"},
	},
	{isErr(context.DeadlineExceeded), UserMessage{"The commit ran out of time", "Committed rows are saved; commit again to finish the remaining rows", "COM007"}},
	{isErr(context.Canceled), UserMessage{"The operation was cancelled", "Remaining rows are still in the import; commit again when ready", "COM005"}},
	{isErr(ErrNoCommitResult), UserMessage{"No commit has run for this import", "Start a commit first", "COM006"}},
	{isErr(ErrSessionNotFound), UserMessage{"Import session not found", "The import may have expired or been committed. Upload the file again", "SES001"}},
	{isErr(ErrSessionBusy), UserMessage{"A commit is running for this import", "Wait for the commit to finish", "SES002"}},
	{isErr(ErrUnknownMode), UserMessage{"Unknown import mode", "Choose existing or new_and_existing", "SES003"}},
	{isErr(ErrMissingColumns), UserMessage{"Required column is missing from the file", "Check that all required columns for this import mode are present", "VAL004"}},
	{isErr(ErrFileTooLarge), UserMessage{"File exceeds the maximum upload size", "Split the file into smaller files", "FILE001"}},
	{isErr(ErrEmptyFile), UserMessage{"The uploaded file is empty", "Upload a CSV with a header row and data rows", "FILE003"}},
	{
		is: func(err error) bool {
			var le *MatchLookupError
			return errors.As(err, &le)
		},
		msg: UserMessage{"The catalog could not be searched for this row", "Edit the row to try the lookup again", "MAT001"},
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns match on the lower-cased error text.
var errorPatterns = []errorPattern{
	// Validation
	{"invalid date", UserMessage{"Invalid date format", "Use MM/DD/YYYY or MM/YY", "VAL001"}},
	{"invalid number", UserMessage{"Invalid number format", "Use whole numbers without symbols", "VAL002"}},
	{"required field", UserMessage{"Required field is empty", "Ensure barcode, name and quantity have values", "VAL003"}},
	{"must be a positive", UserMessage{"Quantity must be positive", "Enter a quantity between 1 and 999999", "VAL005"}},
	{"must be between", UserMessage{"Quantity out of range", "Enter a quantity between 1 and 999999", "VAL005"}},
	{"invalid enum", UserMessage{"Value is not in the allowed list", "Check the allowed dosage units", "VAL006"}},

	// File
	{"parse csv", UserMessage{"File is not a valid CSV", "Ensure the file is comma-separated with consistent quoting", "FILE002"}},

	// Database constraints
	{"duplicate key", UserMessage{"A product with this barcode already exists", "Match the row to the existing product instead", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Review the rows for duplicate barcodes", "DB002"}},
	{"violates foreign key", UserMessage{"Referenced category or product does not exist", "Check the category and product of the failed rows", "DB003"}},
	{"violates check constraint", UserMessage{"A value is out of the allowed range", "Check quantities and dates of the failed rows", "DB003"}},

	// Database connectivity
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"context deadline exceeded", UserMessage{"Operation timed out", "Please try again", "DB006"}},
	{"timeout", UserMessage{"Operation timed out", "Please try again", "DB006"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Throttling
	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to an operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if m.is(err) {
			return m.msg
		}
	}

	text := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(text, p.pattern) {
			return p.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its operator message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err, or returns nil for a nil err.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
