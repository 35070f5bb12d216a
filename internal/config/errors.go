package config

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by configuration operations.
var (
	// ErrKeyNotFound indicates no layer defines the key and no default was given.
	ErrKeyNotFound = errors.New("key not found")

	// ErrTypeCoercion indicates a raw value cannot be parsed to the requested type.
	ErrTypeCoercion = errors.New("type coercion failed")

	// ErrDuplicateName indicates a layer name is already registered in a composite.
	ErrDuplicateName = errors.New("duplicate layer name")

	// ErrInterpolationCycle indicates a self-referential ${...} chain.
	ErrInterpolationCycle = errors.New("interpolation cycle")

	// ErrUnresolvedPlaceholder indicates a prefix template placeholder has no source.
	ErrUnresolvedPlaceholder = errors.New("unresolved placeholder")

	// ErrDecode indicates a property decoder failed.
	ErrDecode = errors.New("decode failed")

	// ErrMapping indicates one or more fields failed to bind.
	ErrMapping = errors.New("mapping failed")

	// ErrInvalidLayer indicates a nil node or an out-of-range layer position.
	ErrInvalidLayer = errors.New("invalid layer")
)

// KeyNotFoundError is returned when no layer defines a required key.
type KeyNotFoundError struct {
	Key string
}

// Error implements the error interface.
func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key not found: %s", e.Key)
}

// Is implements error matching for KeyNotFoundError.
func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}

// TypeCoercionError is returned when a raw value cannot be converted.
type TypeCoercionError struct {
	// Key is the configuration key being read. Empty for direct coercions.
	Key string
	// Value is the raw value that failed to convert.
	Value any
	// Target names the requested type.
	Target string
	// Err is the underlying parse error, if any.
	Err error
}

// Error implements the error interface.
func (e *TypeCoercionError) Error() string {
	subject := fmt.Sprintf("%v", e.Value)
	if e.Key != "" {
		subject = fmt.Sprintf("%s=%v", e.Key, e.Value)
	}
	if e.Err != nil {
		return fmt.Sprintf("cannot coerce %s to %s: %v", subject, e.Target, e.Err)
	}
	return fmt.Sprintf("cannot coerce %s (%T) to %s", subject, e.Value, e.Target)
}

// Is implements error matching for TypeCoercionError.
func (e *TypeCoercionError) Is(target error) bool {
	return target == ErrTypeCoercion
}

// Unwrap returns the underlying error.
func (e *TypeCoercionError) Unwrap() error {
	return e.Err
}

// DuplicateNameError is returned when adding a layer whose name is taken.
type DuplicateNameError struct {
	Name string
}

// Error implements the error interface.
func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("layer %q already exists", e.Name)
}

// Is implements error matching for DuplicateNameError.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// InterpolationCycleError is returned when ${...} references loop back on themselves.
type InterpolationCycleError struct {
	// Chain lists the keys visited, ending with the repeated key.
	Chain []string
}

// Error implements the error interface.
func (e *InterpolationCycleError) Error() string {
	return "interpolation cycle: " + strings.Join(e.Chain, " -> ")
}

// Is implements error matching for InterpolationCycleError.
func (e *InterpolationCycleError) Is(target error) bool {
	return target == ErrInterpolationCycle
}

// UnresolvedPlaceholderError is returned when a template placeholder matches
// neither a declared parameter nor a configuration key.
type UnresolvedPlaceholderError struct {
	Template    string
	Placeholder string
}

// Error implements the error interface.
func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("unresolved placeholder ${%s} in %q", e.Placeholder, e.Template)
}

// Is implements error matching for UnresolvedPlaceholderError.
func (e *UnresolvedPlaceholderError) Is(target error) bool {
	return target == ErrUnresolvedPlaceholder
}

// DecodeError is returned when a property value cannot be decoded.
type DecodeError struct {
	Key  string
	Type string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s as %s: %v", e.Key, e.Type, e.Err)
}

// Is implements error matching for DecodeError.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FieldError describes a single field that failed to bind.
type FieldError struct {
	Field string
	Key   string
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Field, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// MappingError aggregates every field failure of one bind operation.
type MappingError struct {
	Target string
	Fields []*FieldError
}

// Error implements the error interface.
func (e *MappingError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("mapping %s: %d field error(s): %s", e.Target, len(e.Fields), strings.Join(parts, "; "))
}

// Is implements error matching for MappingError.
func (e *MappingError) Is(target error) bool {
	return target == ErrMapping
}

// Unwrap exposes every field error to errors.Is and errors.As.
func (e *MappingError) Unwrap() []error {
	errs := make([]error, len(e.Fields))
	for i, f := range e.Fields {
		errs[i] = f
	}
	return errs
}

// ListenerPanicError reports a listener that panicked during delivery.
type ListenerPanicError struct {
	Kind  EventKind
	Value any
}

// Error implements the error interface.
func (e *ListenerPanicError) Error() string {
	return fmt.Sprintf("listener panicked handling %s event: %v", e.Kind, e.Value)
}
