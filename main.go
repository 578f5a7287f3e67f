package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/BorisBinyaminov/eSIM/app/controllers"
	"github.com/BorisBinyaminov/eSIM/app/repository"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/cache"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/database"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/env"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/provision"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	factory := repository.NewFactory(database.GetDB())
	repository.SetGlobalFactory(factory)

	engine := provision.NewService(
		esimapi.NewClientFromEnv(),
		factory.GetProfileRepository(),
		provision.ConfigFromEnv(),
	)
	controllers.SetEngine(engine)

	app := fiber.New(fiber.Config{
		AppName: "eSIM Unlimited Engine",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	router.InstallRouter(app)

	return app
}
