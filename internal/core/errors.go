package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrTransient     = errors.New("transient fetch error")
	ErrPermanent     = errors.New("permanent fetch error")
	ErrDecode        = errors.New("decode error")
	ErrPageLimit     = errors.New("page limit exceeded")
	ErrRateLimited   = errors.New("rate limited")
)

// Kind is the stable name of an error class, used in HTTP bodies, logs and audit events.
type Kind string

const (
	KindNone          Kind = ""
	KindConfiguration Kind = "configuration_error"
	KindValidation    Kind = "validation_error"
	KindTransient     Kind = "transient_fetch_error"
	KindPermanent     Kind = "permanent_fetch_error"
	KindDecode        Kind = "decode_error"
	KindCanceled      Kind = "canceled"
	KindInternal      Kind = "internal_error"
)

// ConfigError reports identifiers or credentials a client cannot be built without.
type ConfigError struct {
	Component string
	Missing   []string
	Err       error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString(e.Component)
	b.WriteString(" configuration is missing or invalid")
	if len(e.Missing) > 0 {
		b.WriteString(": set ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// FetchError is a failed upstream call. Kind is ErrTransient, ErrPermanent or ErrDecode.
type FetchError struct {
	Kind       error
	StatusCode int
	Body       string
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("Error %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("Error %d after %d attempt(s): %v", e.StatusCode, e.Attempts, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("Error %d", e.StatusCode)
	case e.Attempts > 0 && e.Err != nil:
		return fmt.Sprintf("Request failed after %d attempt(s): %v", e.Attempts, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.Error()
	}
}

func (e *FetchError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Validationf builds an error matching ErrValidation.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// KindOf classifies err into one of the stable error kinds.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrPageLimit):
		return KindPermanent
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindInternal
	}
}
