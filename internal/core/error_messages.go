package core

// error_messages.go maps technical errors to user-facing messages with
// support codes. Users quote the code; support finds the technical error
// in the logs by request id.
//
// Errors are matched first by identity (errors.Is against the sentinels of
// the dataset, session and core packages), then by substring for errors
// raised outside this module (context cancellation, rate limiting).
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Malformed file
//	FILE003 - Encoding could not be detected
//	FILE004 - No file selected
//	FILE005 - Empty file
//	FILE006 - Unsupported format
//
// # Selection Errors (SEL001-SEL099)
//
//	SEL001 - Invalid column selection
//	SEL002 - No columns selected for preprocessing
//	SEL003 - Column has only missing values
//	SEL004 - Column not found
//	SEL005 - Column is not numeric
//	SEL006 - Invalid option value
//
// # Session Errors (SES001-SES099)
//
//	SES001 - No dataset loaded
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - Too many loads in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
//	RATE001 - Too many requests
//	ERR000  - Unexpected error

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/workbench/internal/dataset"
	"github.com/JonMunkholm/workbench/internal/recipe"
	"github.com/JonMunkholm/workbench/internal/session"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked in order; the first errors.Is match wins.
var sentinelMessages = []sentinelMessage{
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Remove unneeded rows or columns and upload again",
		Code:    "FILE001",
	}},
	{dataset.ErrMalformedFile, UserMessage{
		Message: "The file could not be parsed",
		Action:  "Check that the file matches its extension and has consistent rows",
		Code:    "FILE002",
	}},
	{dataset.ErrDecodeFailure, UserMessage{
		Message: "The file encoding could not be detected",
		Action:  "Save the file as UTF-8 and upload again",
		Code:    "FILE003",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was selected",
		Action:  "Choose a file to upload",
		Code:    "FILE004",
	}},
	{dataset.ErrEmptyFile, UserMessage{
		Message: "The uploaded file is empty",
		Action:  "Upload a file with a header row",
		Code:    "FILE005",
	}},
	{dataset.ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported file format",
		Action:  "Upload a .csv, .txt, .xlsx, .xls or .parquet file",
		Code:    "FILE006",
	}},
	{dataset.ErrInvalidSelection, UserMessage{
		Message: "The column selection is not valid for this operation",
		Action:  "Choose different columns",
		Code:    "SEL001",
	}},
	{dataset.ErrNoColumnsSelected, UserMessage{
		Message: "No columns selected",
		Action:  "Select at least one numeric or categorical column",
		Code:    "SEL002",
	}},
	{dataset.ErrEmptyColumn, UserMessage{
		Message: "The column contains only missing values",
		Action:  "Drop the column or choose a constant fill value",
		Code:    "SEL003",
	}},
	{dataset.ErrColumnNotFound, UserMessage{
		Message: "Column not found",
		Action:  "Refresh the page; the dataset may have changed",
		Code:    "SEL004",
	}},
	{dataset.ErrNotNumeric, UserMessage{
		Message: "The column is not numeric",
		Action:  "Choose a numeric column",
		Code:    "SEL005",
	}},
	{dataset.ErrInvalidOption, UserMessage{
		Message: "An option value is not valid",
		Action:  "Check the allowed values and try again",
		Code:    "SEL006",
	}},
	{recipe.ErrNoSteps, UserMessage{
		Message: "The recipe has no steps",
		Action:  "Add at least one step to the recipe",
		Code:    "SEL006",
	}},
	{session.ErrNoDataset, UserMessage{
		Message: "No dataset loaded",
		Action:  "Upload a file first",
		Code:    "SES001",
	}},
	{ErrTooManyLoads, UserMessage{
		Message: "System busy",
		Action:  "Please wait a moment and try again",
		Code:    "UPL002",
	}},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is the substring fallback, matched case-insensitively.
var errorPatterns = []errorPattern{
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "UPL005",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Remove unneeded rows or columns and upload again",
			Code:    "FILE001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches. Support checks the logs
// for the technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var ue *UserError
	if errors.As(err, &ue) {
		return ue.User
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
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

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError carries a technical error together with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
