package datastore

import (
	"fmt"

	"github.com/edaschema/edaschema/internal/errors"
)

// dbError creates a properly categorized backend error with context
func dbError(err error, backend, operation, table string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("backend", backend).
		Context("operation", operation).
		Table(table)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// fileError creates a file I/O error for the file backend
func fileError(err error, operation, path string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryFileIO).
		Context("backend", BackendFile).
		Context("operation", operation).
		Context("path", path).
		Build()
}

// serializationError creates an error for payloads that cannot be encoded or decoded
func serializationError(err error, backend, operation, table string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategorySerialization).
		Context("backend", backend).
		Context("operation", operation).
		Table(table).
		Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// conflictError creates a conflict error for duplicate keys on append-only storage
func conflictError(backend, table, key string) error {
	message := fmt.Sprintf("%s: duplicate key %q", table, key)
	if key == "" {
		message = table + ": duplicate primary key"
	}
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryConflict).
		Priority(errors.PriorityLow).
		Context("backend", backend).
		Context("key", key).
		Table(table).
		Build()
}

// notFoundError creates a not found error (low priority, never reported)
func notFoundError(resource, table, identifier string) error {
	return errors.Newf("%s not found in %s: %s", resource, table, identifier).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("resource", resource).
		Context("identifier", identifier).
		Table(table).
		Build()
}

// stateError reports use of a store that is not open
func stateError(backend, operation string) error {
	return errors.Newf("%s datastore is not open", backend).
		Component("datastore").
		Category(errors.CategoryState).
		Context("backend", backend).
		Context("operation", operation).
		Build()
}
