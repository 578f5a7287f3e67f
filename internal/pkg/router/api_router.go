package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/BorisBinyaminov/eSIM/app/controllers"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/middleware"
)

// InstallRouter mounts the engine API consumed by the bot and mini-app
// frontends. Every route runs behind the service-token authentication.
func InstallRouter(app *fiber.App) {
	api := app.Group("/api/v1", middleware.BotAuth())

	purchase := api.Group("/purchase")
	purchase.Post("/intent", controllers.HandleCreatePurchaseIntent)
	purchase.Post("/confirm", controllers.HandleConfirmPurchase)

	esim := api.Group("/esim")
	esim.Get("/", controllers.HandleListProfiles)
	esim.Get("/:iccid", controllers.HandleProfileStatus)
	esim.Post("/:iccid/cancel", controllers.HandleCancelProfile)
	esim.Get("/:iccid/topup/packages", controllers.HandleTopUpPackages)
	esim.Post("/:iccid/topup", controllers.HandleTopUpProfile)
	esim.Post("/:iccid/usage/refresh", controllers.HandleRefreshUsage)
}
