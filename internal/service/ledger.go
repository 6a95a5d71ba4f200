package service

import (
	"context"
	"errors"
	"fmt"

	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// Metric outcomes.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// errMissingBalance marks a withdrawal whose creator balance row has vanished.
var errMissingBalance = errors.New("creator balance missing for existing withdrawal")

// validateAmount enforces positive amounts below the configured ceiling.
func validateAmount(amountCents, maxCents int64) error {
	if amountCents <= 0 {
		return apperror.InvalidAmount("Amount must be a positive number of cents")
	}
	if maxCents > 0 && amountCents > maxCents {
		return apperror.InvalidAmount(fmt.Sprintf("Amount exceeds the maximum of %d cents", maxCents))
	}
	return nil
}

// dbError wraps a repository failure as DATABASE_ERROR.
func dbError(op string, err error) error {
	return apperror.ErrDatabaseError(fmt.Errorf("%s: %w", op, err))
}

// toAppError returns err unchanged when it already carries a code.
// Transaction begin/commit failures arrive here as foreign errors.
func toAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.ErrDatabaseError(err)
}

// publish hands an event to the publisher. Failures are logged and never returned.
func publish(ctx context.Context, pub ports.EventPublisher, log zerolog.Logger, event domain.Event) {
	if err := pub.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event_type", event.EventType()).Msg("failed to publish domain event")
	}
}

// logFailure logs resource exhaustion at warn and infrastructure failures at error.
func logFailure(log zerolog.Logger, err error, msg string) {
	switch apperror.CategoryOf(apperror.CodeOf(err)) {
	case apperror.CategoryExhausted:
		log.Warn().Str("error_code", string(apperror.CodeOf(err))).Msg(msg)
	case apperror.CategoryInfrastructure:
		log.Error().Err(err).Msg(msg)
	default:
		log.Debug().Str("error_code", string(apperror.CodeOf(err))).Msg(msg)
	}
}
