package validate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is the root of every validation failure.
var ErrValidation = errors.New("validation failed")

// Code identifies which rule a field broke.
type Code string

const (
	CodeEmptyText         Code = "EmptyText"
	CodeTooShort          Code = "TooShort"
	CodeTooLong           Code = "TooLong"
	CodeIllegalCharacters Code = "IllegalCharacters"
	CodeInvalidID         Code = "InvalidID"
	CodeInvalidType       Code = "InvalidType"
	CodeInvalidTimestamp  Code = "InvalidTimestamp"
	CodeTimestampOrder    Code = "TimestampOrder"
	CodeMissingField      Code = "MissingField"
	CodeUnknownField      Code = "UnknownField"
	CodeEmptyPatch        Code = "EmptyPatch"
	CodeDuplicateID       Code = "DuplicateID"
	CodeInvalidAction     Code = "InvalidAction"
)

// FieldError is a single broken rule.
type FieldError struct {
	Field   string `json:"field"`
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func fieldErr(field string, code Code, format string, args ...any) FieldError {
	return FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error carries the field errors of a rejected operation.
type Error struct {
	Op     string
	Fields []FieldError
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrValidation.Error(), strings.Join(msgs, "; "))
}

func (e *Error) Unwrap() error { return ErrValidation }

// Has reports whether any field error carries code.
func (e *Error) Has(code Code) bool {
	return HasCode(e.Fields, code)
}

// HasCode reports whether errs contains code.
func HasCode(errs []FieldError, code Code) bool {
	for _, f := range errs {
		if f.Code == code {
			return true
		}
	}
	return false
}

func prefixed(prefix string, errs []FieldError) []FieldError {
	out := make([]FieldError, len(errs))
	for i, e := range errs {
		if e.Field == "" {
			e.Field = prefix
		} else {
			e.Field = prefix + "." + e.Field
		}
		out[i] = e
	}
	return out
}
