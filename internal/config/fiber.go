package config

import (
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger) *fiber.App {
	appName := os.Getenv("APP_NAME")
	if appName == "" {
		appName = "Conveyor Vision"
	}

	bodyLimitMB, err := strconv.Atoi(os.Getenv("APP_BODY_LIMIT_MB"))
	if err != nil || bodyLimitMB <= 0 {
		bodyLimitMB = 10
	}

	app := fiber.New(
		fiber.Config{
			AppName:           appName,
			BodyLimit:         bodyLimitMB * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: os.Getenv("APP_ENV") != "test",
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
		})

	logger.WithField("body_limit_mb", bodyLimitMB).Debug("Fiber app created")
	return app
}
