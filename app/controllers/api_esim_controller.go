package controllers

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/middleware"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/provision"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/session"
)

var (
	engine   *provision.Service
	engineMu sync.RWMutex
	validate = validator.New()
)

// SetEngine installs the provisioning engine used by the eSIM handlers.
func SetEngine(svc *provision.Service) {
	engineMu.Lock()
	defer engineMu.Unlock()
	engine = svc
}

func getEngine() *provision.Service {
	engineMu.RLock()
	defer engineMu.RUnlock()
	return engine
}

// PurchaseIntentRequest selects a package and parks it until the user
// confirms a quantity. Prices arrive in provider units from the catalog
// the UI displays.
type PurchaseIntentRequest struct {
	PackageCode string `json:"package_code" validate:"required,max=64"`
	UnitPrice   int64  `json:"unit_price" validate:"required,gt=0"`
	RetailPrice int64  `json:"retail_price" validate:"gte=0"`
	Duration    int    `json:"duration" validate:"required,gt=0"`
}

// HandleCreatePurchaseIntent stores a pending purchase for the acting user.
// The response tells the UI which quantity to ask for next: day count for
// daily packages, profile count otherwise.
func HandleCreatePurchaseIntent(c *fiber.Ctx) error {
	var req PurchaseIntentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	pending := session.PendingPurchase{
		PackageCode: req.PackageCode,
		UnitPrice:   req.UnitPrice,
		RetailPrice: req.RetailPrice,
		Duration:    req.Duration,
	}
	if err := session.SavePendingPurchase(c.Context(), middleware.UserID(c), pending); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to store purchase intent"})
	}

	prompt := "count"
	if pending.Daily() {
		prompt = "days"
	}
	return c.JSON(fiber.Map{
		"package_code": pending.PackageCode,
		"quantity_of":  prompt,
		"expires_in":   session.TTL().Seconds(),
	})
}

// PurchaseConfirmRequest completes a pending purchase with the quantity
// the user entered.
type PurchaseConfirmRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// HandleConfirmPurchase consumes the pending intent and runs the full
// fulfillment flow. The intent is single-use; an expired or missing one
// asks the user to select a package again.
func HandleConfirmPurchase(c *fiber.Ctx) error {
	var req PurchaseConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Please enter a valid positive number"})
	}

	userID := middleware.UserID(c)
	pending, err := session.TakePendingPurchase(c.Context(), userID)
	if err != nil {
		if errors.Is(err, session.ErrNoPendingPurchase) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no_pending_purchase", "message": "No package selected or the selection expired"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load purchase intent"})
	}

	result, err := getEngine().Purchase(c.Context(), provision.PurchaseInput{
		UserID:      userID,
		PackageCode: pending.PackageCode,
		UnitPrice:   pending.UnitPrice,
		RetailPrice: pending.RetailPrice,
		Duration:    pending.Duration,
		Quantity:    req.Quantity,
	})
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(result)
}

// HandleListProfiles returns the acting user's profiles ordered by display
// priority.
func HandleListProfiles(c *fiber.Ctx) error {
	statuses, err := getEngine().ListProfiles(middleware.UserID(c))
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(fiber.Map{"profiles": statuses})
}

// HandleProfileStatus returns the latest reconciled status and the legal
// actions for one profile, refreshing usage opportunistically.
func HandleProfileStatus(c *fiber.Ctx) error {
	status, err := getEngine().Status(c.Context(), middleware.UserID(c), c.Params("iccid"))
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(status)
}

// HandleCancelProfile cancels an unused profile.
func HandleCancelProfile(c *fiber.Ctx) error {
	status, err := getEngine().Cancel(c.Context(), middleware.UserID(c), c.Params("iccid"))
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(status)
}

// HandleTopUpPackages lists the rechargeable packages for a profile,
// cheapest first.
func HandleTopUpPackages(c *fiber.Ctx) error {
	packages, err := getEngine().TopUpPackages(c.Context(), middleware.UserID(c), c.Params("iccid"))
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(fiber.Map{"packages": packages})
}

// TopUpRequestBody selects a package from the top-up menu.
type TopUpRequestBody struct {
	PackageCode string `json:"package_code" validate:"required,max=64"`
	Price       int64  `json:"price" validate:"required,gt=0"`
}

// HandleTopUpProfile recharges a profile with the selected package.
func HandleTopUpProfile(c *fiber.Ctx) error {
	var req TopUpRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid JSON body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": err.Error()})
	}

	outcome, err := getEngine().TopUp(c.Context(), middleware.UserID(c), provision.TopUpInput{
		ICCID:       c.Params("iccid"),
		PackageCode: req.PackageCode,
		Price:       req.Price,
	})
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(outcome)
}

// HandleRefreshUsage refreshes the usage snapshot of an active profile.
func HandleRefreshUsage(c *fiber.Ctx) error {
	status, err := getEngine().RefreshUsage(c.Context(), middleware.UserID(c), c.Params("iccid"))
	if err != nil {
		return respondEngineError(c, err)
	}
	return c.JSON(status)
}
