package util

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind 机器可读的错误类别，边界处统一映射为 HTTP 状态码
type ErrorKind string

const (
	KindUnauthenticated  ErrorKind = "unauthenticated"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindValidation       ErrorKind = "validation_error"
	KindNotFound         ErrorKind = "not_found"
	KindConflict         ErrorKind = "conflict"
	KindStorageFailure   ErrorKind = "storage_failure"
	KindTransientFailure ErrorKind = "transient_dependency_failure"
)

// 细分原因
const (
	ReasonSelfConnection        = "self_connection"
	ReasonDuplicateRelationship = "duplicate_relationship"
	ReasonRequestNotPending     = "request_not_pending"
	ReasonUserNotFound          = "user_not_found"
	ReasonUnknownUsers          = "unknown_users"
	ReasonSelfConversation      = "self_conversation"
	ReasonNotConnected          = "not_connected"
	ReasonNotAdmin              = "not_admin"
	ReasonCannotRemoveSelf      = "cannot_remove_self"
	ReasonNotMember             = "not_member"
	ReasonNotParticipant        = "not_participant"
	ReasonEmptyMessage          = "empty_message"
	ReasonMessageTooLong        = "message_too_long"
	ReasonInvalidFileType       = "invalid_file_type"
	ReasonFileTooLarge          = "file_too_large"
	ReasonMessageNotFound       = "message_not_found"
	ReasonGroupNotFound         = "group_not_found"
	ReasonConversationNotFound  = "conversation_not_found"
	ReasonEmailTaken            = "email_taken"
	ReasonInvalidCredentials    = "invalid_credentials"
)

type AppError struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Status() int {
	return StatusForKind(e.Kind)
}

func NewError(kind ErrorKind, reason, message string) *AppError {
	return &AppError{Kind: kind, Reason: reason, Message: message}
}

func ErrUnauthenticated() *AppError {
	return NewError(KindUnauthenticated, "", "Please log in again")
}

func ErrUnauthorized(reason, message string) *AppError {
	return NewError(KindUnauthorized, reason, message)
}

func ErrValidation(reason, message string) *AppError {
	return NewError(KindValidation, reason, message)
}

func ErrNotFound(reason, message string) *AppError {
	return NewError(KindNotFound, reason, message)
}

func ErrConflict(reason, message string) *AppError {
	return NewError(KindConflict, reason, message)
}

// ErrStorage 文件存储失败，原始错误只记录日志
func ErrStorage(err error) *AppError {
	return &AppError{Kind: KindStorageFailure, Message: "File storage failed", Err: err}
}

// ErrTransient 持久层不可用或其他意外错误
func ErrTransient(err error) *AppError {
	return &AppError{Kind: KindTransientFailure, Message: "Service temporarily unavailable", Err: err}
}

// AsAppError 非 AppError 一律视为临时依赖故障
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrTransient(err)
}

// KindOf 返回错误类别，nil 返回空串
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	return AsAppError(err).Kind
}

func StatusForKind(kind ErrorKind) int {
	switch kind {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindStorageFailure:
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}
