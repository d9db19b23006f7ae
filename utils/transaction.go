package utils

import (
	"context"
	"errors"

	"github.com/mmdatafocus/printworks_backend/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/printworks_backend")

// RunInTransaction is the unit of work of every mutating operation: fn runs in
// one database transaction, nothing is committed unless it returns nil, and the
// returned error is always classified into the error taxonomy.
func RunInTransaction(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	ctx, span := tracer.Start(ctx, operation, trace.WithAttributes(
		attribute.String("app.operation", operation),
	))
	defer span.End()

	db := config.GetDB()
	if db == nil {
		err := &Error{Kind: KindPersistence, Rule: "store_unavailable", Message: "database is not connected"}
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := db.WithContext(ctx).Transaction(fn)
	if err == nil {
		return nil
	}

	err = ClassifyDBError(err)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	fields := logrus.Fields{
		"operation":      operation,
		"correlation_id": CorrelationIdFromContextOrNew(ctx),
		"kind":           KindOf(err),
		"rule":           RuleOf(err),
	}
	switch {
	case errors.Is(err, ErrPersistence):
		config.GetLogger().WithFields(fields).Error(err.Error())
	case errors.Is(err, ErrConcurrencyConflict):
		config.GetLogger().WithFields(fields).Warn(err.Error())
	default:
		config.GetLogger().WithFields(fields).Debug(err.Error())
	}
	return err
}
