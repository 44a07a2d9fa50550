package datastore

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/errors"
)

// dbError wraps a storage engine failure as a persistence error
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryPersistence).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}
	return builder.Build()
}

// notFoundError reports a lookup miss
func notFoundError(entity, id string) error {
	return errors.Newf("%s %q not found", entity, id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("entity", entity).
		Context("id", id).
		Build()
}

// validationError reports bad input
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// lookupError maps gorm.ErrRecordNotFound to NotFound and everything else
// to a persistence error
func lookupError(err error, entity, id, operation string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFoundError(entity, id)
	}
	return dbError(err, operation, "id", id)
}

// passthrough keeps already categorised errors and wraps the rest
func passthrough(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ee *errors.EnhancedError
	if errors.As(err, &ee) {
		return err
	}
	return dbError(err, operation)
}

// existingCreatedAt returns the stored creation time of the row with id, or
// the zero time when there is none. Save writes every column, so updates
// carry it over.
func existingCreatedAt[T any](tx *gorm.DB, id string) (time.Time, error) {
	var created time.Time
	err := tx.Model(new(T)).Select("created_at").Where("id = ?", id).Limit(1).Scan(&created).Error
	return created, err
}
