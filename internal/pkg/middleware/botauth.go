package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/BorisBinyaminov/eSIM/app/models"
	"github.com/BorisBinyaminov/eSIM/app/repository"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/env"
)

const (
	headerBotToken   = "X-Bot-Token"
	headerTelegramID = "X-Telegram-Id"
	headerUsername   = "X-Telegram-Username"

	localsUserIDKey = "engine_user_id"
)

// BotAuth authenticates the bot/mini-app frontend with a static service
// token and resolves the acting end user from the Telegram identity
// headers, upserting the owner record on first contact.
func BotAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		expected := strings.TrimSpace(env.GetEnv("BOT_SERVICE_TOKEN", ""))
		provided := strings.TrimSpace(c.Get(headerBotToken))
		if expected == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid service token"})
		}

		telegramID := strings.TrimSpace(c.Get(headerTelegramID))
		if telegramID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Missing " + headerTelegramID + " header"})
		}

		user := &models.User{
			TelegramID: telegramID,
			Username:   strings.TrimSpace(c.Get(headerUsername)),
		}
		if user.Username == "" {
			user.Username = "Telegram User"
		}
		repo := repository.GetGlobalFactory().GetUserRepository()
		if err := repo.Upsert(user); err != nil {
			log.Printf("user upsert failed for telegram id %s: %v", telegramID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to resolve user"})
		}

		c.Locals(localsUserIDKey, user.ID)
		return c.Next()
	}
}

// UserID returns the acting user resolved by BotAuth, or zero when the
// request is unauthenticated.
func UserID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localsUserIDKey).(uint)
	return id
}
