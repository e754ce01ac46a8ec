package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/KeremKalyoncu/grabkit/internal/auth"
	apperrors "github.com/KeremKalyoncu/grabkit/internal/errors"
	"github.com/KeremKalyoncu/grabkit/internal/middleware"
)

// billable is an operation run on behalf of an authorized principal. It
// reports whether its success should be charged.
type billable func(ctx context.Context) (charge bool, err error)

// authorized checks the request's credential, runs op and charges only
// after op succeeded. Usage headers are set on success and on denial.
func authorized(c *fiber.Ctx, gate *auth.Gate, logger *zap.Logger, op billable) error {
	return authorizedUndo(c, gate, logger, op, nil)
}

// authorizedUndo is authorized with a compensating step. undo runs when op
// succeeded but the charge was refused, so side effects of op can be
// withdrawn before the client sees 402.
func authorizedUndo(c *fiber.Ctx, gate *auth.Gate, logger *zap.Logger, op billable, undo func(ctx context.Context)) error {
	ctx := c.UserContext()

	d := gate.Authorize(ctx, middleware.CredentialFrom(c))
	defer middleware.SetUsageHeaders(c, d)

	if !d.Allowed {
		return d.Err
	}

	charge, err := op(ctx)
	if err != nil || !charge {
		return err
	}

	if err := d.Commit(ctx); err != nil {
		// balance drained by a concurrent request between check and charge
		if errors.Is(err, auth.ErrNoCredits) {
			if undo != nil {
				undo(context.WithoutCancel(ctx))
			}
			return apperrors.ErrInsufficientCredits
		}
		logger.Error("Failed to record usage",
			zap.String("principal", d.Principal.Kind.String()),
			zap.String("subject", d.Principal.Subject()),
			zap.Error(err),
		)
	}
	return nil
}
