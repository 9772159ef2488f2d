package errors

import (
	stderrors "errors"
	"strings"
)

// ErrorCategory groups errors by what went wrong
type ErrorCategory string

// CategorizedError is implemented by errors that know their own category
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

// Validation and NotFound describe the caller's request. Every other
// category is a backend failure.
const (
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not-found"

	CategoryDatabase      ErrorCategory = "database"
	CategoryFileIO        ErrorCategory = "file-io"
	CategorySerialization ErrorCategory = "serialization"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryNetwork       ErrorCategory = "network"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryState         ErrorCategory = "state"
	CategoryGeneric       ErrorCategory = "generic"
)

// IsCategory reports whether err wraps an EnhancedError of category
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return stderrors.As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether a requested key, table or graph is absent
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsValidation reports whether an entity or row broke its schema
func IsValidation(err error) bool {
	return IsCategory(err, CategoryValidation)
}

// IsBackend reports whether err is any other non-nil failure
func IsBackend(err error) bool {
	return err != nil && !IsNotFound(err) && !IsValidation(err)
}

// inheritCategory keeps the category of a wrapped error so that wrapping a
// not-found error does not turn it into a backend failure.
func inheritCategory(err error) ErrorCategory {
	var self CategorizedError
	if stderrors.As(err, &self) {
		return self.ErrorCategory()
	}
	var ee *EnhancedError
	if stderrors.As(err, &ee) && ee.Category != "" {
		return ee.Category
	}
	return CategoryGeneric
}

var messageCategories = []struct {
	category ErrorCategory
	needles  []string
}{
	{CategoryNotFound, []string{"not found", "no such file"}},
	{CategoryConflict, []string{"duplicate", "unique constraint"}},
	{CategoryTimeout, []string{"timeout", "deadline exceeded"}},
	{CategoryNetwork, []string{"connection"}},
	{CategorySerialization, []string{"marshal", "decode", "encode"}},
	{CategoryFileIO, []string{"file", "permission denied"}},
}

// detectCategory guesses a category from the wrapped error, then its
// message, then the component that raised it.
func detectCategory(err error, component string) ErrorCategory {
	if category := inheritCategory(err); category != CategoryGeneric || err == nil {
		return category
	}

	msg := strings.ToLower(err.Error())
	for _, mc := range messageCategories {
		for _, needle := range mc.needles {
			if strings.Contains(msg, needle) {
				return mc.category
			}
		}
	}

	switch component {
	case "datastore", "snapshot":
		return CategoryDatabase
	case "schema", "entity", "graph":
		return CategoryValidation
	case "configuration":
		return CategoryConfiguration
	}
	return CategoryGeneric
}
