package sqlexpr

import (
	"errors"
	"fmt"
)

// TranslationError represents a fatal fault detected while building or
// lowering a query expression.
//
// Translation errors fall into three families:
//   - Usage/ordering errors: an operation was applied in an order the
//     query lifecycle forbids (limit set twice, ordering after paging).
//     These signal a bug in the upstream translation sequence.
//   - Missing-mapping errors: a projection member or type mapping that
//     must exist by construction was absent. These signal an internal
//     translation inconsistency.
//   - Unsupported-construct errors: the construct is recognized but the
//     store variant cannot lower it. Distinct from a translator's
//     "no match", which is a normal probing outcome, not an error.
type TranslationError struct {
	// Code identifies the error category.
	Code TranslationErrorCode

	// Message is a human-readable description.
	Message string

	// Member names the projection member or property involved, when
	// one is.
	Member string

	// Detail carries additional context for diagnostics.
	Detail string
}

// TranslationErrorCode categorizes translation errors.
type TranslationErrorCode string

const (
	// ErrCodeLimitAlreadySet indicates a second ApplyLimit on one query.
	ErrCodeLimitAlreadySet TranslationErrorCode = "LIMIT_ALREADY_SET"

	// ErrCodeOffsetAlreadySet indicates a second ApplyOffset on one query.
	ErrCodeOffsetAlreadySet TranslationErrorCode = "OFFSET_ALREADY_SET"

	// ErrCodeOffsetAfterLimit indicates ApplyOffset after ApplyLimit.
	ErrCodeOffsetAfterLimit TranslationErrorCode = "OFFSET_AFTER_LIMIT"

	// ErrCodeOrderingAfterPaging indicates ApplyOrdering after
	// distinct, limit, or offset were applied.
	ErrCodeOrderingAfterPaging TranslationErrorCode = "ORDERING_AFTER_PAGING"

	// ErrCodeReverseAfterPaging indicates ReverseOrderings after limit
	// or offset were applied.
	ErrCodeReverseAfterPaging TranslationErrorCode = "REVERSE_AFTER_PAGING"

	// ErrCodeFrozen indicates mutation of a finalized query.
	ErrCodeFrozen TranslationErrorCode = "FROZEN"

	// ErrCodeMissingProjection indicates a projection-member lookup
	// that found no entry.
	ErrCodeMissingProjection TranslationErrorCode = "MISSING_PROJECTION"

	// ErrCodeUntypedSubquery indicates an IN subquery whose projected
	// column carries no concrete type mapping.
	ErrCodeUntypedSubquery TranslationErrorCode = "UNTYPED_SUBQUERY"

	// ErrCodeUnsupported indicates a recognized construct the store
	// variant cannot lower.
	ErrCodeUnsupported TranslationErrorCode = "UNSUPPORTED"

	// ErrCodeUntranslatable indicates a construct no translator
	// accepted.
	ErrCodeUntranslatable TranslationErrorCode = "UNTRANSLATABLE"
)

// Error implements the error interface.
func (e *TranslationError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s: %s (member=%s)", e.Code, e.Message, e.Member)
	}
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUsageError reports whether err is an ordering/lifecycle usage
// error. Uses errors.As to handle wrapped errors.
func IsUsageError(err error) bool {
	var te *TranslationError
	if !errors.As(err, &te) {
		return false
	}
	switch te.Code {
	case ErrCodeLimitAlreadySet, ErrCodeOffsetAlreadySet, ErrCodeOffsetAfterLimit,
		ErrCodeOrderingAfterPaging, ErrCodeReverseAfterPaging, ErrCodeFrozen:
		return true
	}
	return false
}

// IsMissingProjection reports whether err is a missing projection-member
// lookup.
func IsMissingProjection(err error) bool {
	var te *TranslationError
	return errors.As(err, &te) && te.Code == ErrCodeMissingProjection
}

// IsUnsupported reports whether err is an unsupported-construct error.
func IsUnsupported(err error) bool {
	var te *TranslationError
	return errors.As(err, &te) && te.Code == ErrCodeUnsupported
}

func usageError(code TranslationErrorCode, msg string) *TranslationError {
	return &TranslationError{Code: code, Message: msg}
}
