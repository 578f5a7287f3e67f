package controllers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/provision"
)

// respondEngineError maps the engine's error taxonomy to HTTP responses.
// NotEligible is a normal negative result and carries the offending state;
// persistence failures after a real charge are flagged for support
// follow-up instead of inviting a retry.
func respondEngineError(c *fiber.Ctx, err error) error {
	var (
		balanceErr     *provision.InsufficientBalanceError
		upstreamErr    *provision.UpstreamError
		timeoutErr     *provision.AllocationTimeoutError
		persistErr     *provision.PersistenceError
		notEligibleErr *provision.NotEligibleError
		validationErr  validator.ValidationErrors
	)

	switch {
	case errors.As(err, &balanceErr):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error":     "insufficient_balance",
			"required":  balanceErr.Required,
			"available": balanceErr.Available,
		})
	case errors.As(err, &notEligibleErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":     "not_eligible",
			"operation": notEligibleErr.Operation,
			"state":     notEligibleErr.State,
		})
	case errors.As(err, &timeoutErr):
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error":            "allocation_timeout",
			"order_no":         timeoutErr.OrderNo,
			"still_processing": timeoutErr.StillProcessing,
		})
	case errors.As(err, &persistErr):
		log.Printf("ledger write failed after charge (order %s): %v", persistErr.OrderNo, persistErr.Err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":    "persistence_failed",
			"order_no": persistErr.OrderNo,
			"message":  "The order was charged but could not be recorded. Do not retry; contact support.",
		})
	case errors.As(err, &upstreamErr):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "upstream_rejected",
			"code":    upstreamErr.Code,
			"message": upstreamErr.Message,
		})
	case errors.Is(err, provision.ErrUnknownProfile):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Profile not found"})
	case errors.Is(err, provision.ErrMissingReference):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "missing_reference", "message": "Profile has no transaction reference"})
	case errors.Is(err, provision.ErrOrderAcceptedNoID):
		log.Printf("provider inconsistency: %v", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":   "order_inconsistent",
			"message": "The provider accepted the order without returning an order number. Do not retry; contact support.",
		})
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	log.Printf("engine error: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error"})
}
