// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, user-facing messages and exit codes.
//
// Commands ALWAYS return errors and never print them; Execute displays the
// error once and turns it into an exit code.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/neulbom/neulbom-cli/internal/backend"
	"github.com/neulbom/neulbom-cli/internal/config"
	"github.com/neulbom/neulbom-cli/internal/conversation"
	"github.com/neulbom/neulbom-cli/internal/storage"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing or rejected credential
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// ValidationError represents bad command-line input.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Value != "" {
		msg = fmt.Sprintf("%s: %s", e.Reason, e.Value)
	} else if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	if e.Example != "" {
		msg += "\n  Example: " + e.Example
	}
	return msg
}

// NotFoundError represents a missing resource named on the command line.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// Is lets a NotFoundError for a conversation match
// storage.ErrConversationNotFound.
func (e *NotFoundError) Is(target error) bool {
	return e.Resource == "conversation" && target == storage.ErrConversationNotFound
}

// ConfigError wraps failures to load or apply the configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "configuration error"
	}
	return e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// NewValidationErrorWithExample creates a ValidationError with a usage hint.
func NewValidationErrorWithExample(field, value, reason, example string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason, Example: example}
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ErrMissingArgument reports a required positional argument.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "is required", Example: usage}
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError reports err once: as a JSON envelope on stdout in JSON mode,
// otherwise as a styled line on stderr.
func DisplayError(stdout, stderr io.Writer, err error, args Args) {
	if err == nil {
		return
	}
	if args.JSON {
		resp := NewJSONErrorResponse(args.Name, err)
		resp.ErrorType = errorType(err)
		_ = resp.Print(stdout)
		return
	}
	fmt.Fprintf(stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), UserMessage(err))
}

// UserMessage turns err into the line shown to the user. Transport and
// server details stay in the verbose log.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, conversation.ErrLoginRequired):
		return "로그인이 필요합니다. `neulbom login`으로 다시 로그인해 주세요."
	case errors.Is(err, conversation.ErrSendInFlight):
		return "이전 메시지의 답변을 기다리고 있습니다."
	case errors.Is(err, conversation.ErrEmptyMessage):
		return "보낼 메시지를 입력해 주세요."
	case errors.Is(err, storage.ErrEmptyTitle):
		return "제목을 입력해 주세요."
	case errors.Is(err, backend.ErrRateLimited):
		return "요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
	case errors.Is(err, context.DeadlineExceeded):
		return "응답 시간이 초과되었습니다. 잠시 후 다시 시도해 주세요."
	case backend.IsUnreachable(err):
		return "서버에 연결할 수 없습니다. 네트워크 상태를 확인해 주세요."
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 500 {
		return "서버에 문제가 생겼습니다. 잠시 후 다시 시도해 주세요."
	}
	return err.Error()
}

func errorType(err error) string {
	var validationErr *ValidationError
	var notFoundErr *NotFoundError
	var configErr *ConfigError
	var authErr *authFailure
	switch {
	case errors.As(err, &validationErr):
		return "validation_error"
	case errors.As(err, &notFoundErr), errors.Is(err, storage.ErrConversationNotFound):
		return "not_found_error"
	case errors.As(err, &configErr):
		return "config_error"
	case errors.As(err, &authErr), errors.Is(err, conversation.ErrLoginRequired), backend.IsAuthError(err):
		return "auth_error"
	case backend.IsUnreachable(err):
		return "network_error"
	default:
		return "generic_error"
	}
}

// GetExitCode determines the appropriate exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return ExitUsageError
	}

	var configErr *ConfigError
	var configValidation config.ValidateErrors
	if errors.As(err, &configErr) || errors.As(err, &configValidation) {
		return ExitConfigError
	}

	var authErr *authFailure
	if errors.As(err, &authErr) || errors.Is(err, conversation.ErrLoginRequired) || backend.IsAuthError(err) {
		return ExitAuthError
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) ||
		errors.Is(err, storage.ErrConversationNotFound) ||
		errors.Is(err, backend.ErrNotFound) {
		return ExitNotFoundError
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ExitTimeoutError
	}

	if backend.IsUnreachable(err) {
		return ExitNetworkError
	}

	// Errors from outside our types, e.g. a password prompt.
	if strings.Contains(strings.ToLower(err.Error()), "timed out") {
		return ExitTimeoutError
	}

	return ExitGeneralError
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
