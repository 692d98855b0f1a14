package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vsinha/freshplan/pkg/infrastructure/logging"
	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
	"github.com/vsinha/freshplan/pkg/interfaces/api"
)

const maxBody = 8 * 1024 * 1024

func main() {
	logging.Setup(logging.Config{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	})
	log := logging.Component("server")

	runTimeout, err := time.ParseDuration(getEnvOrDefault("FRESHPLAN_RUN_TIMEOUT", "10m"))
	if err != nil {
		log.Error("invalid FRESHPLAN_RUN_TIMEOUT", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:      "freshplan",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: runTimeout + 30*time.Second,
		BodyLimit:    maxBody,
		ErrorHandler: customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
	app.Use(api.RequestSizeLimiter(maxBody))

	var store *storage.Store
	if url := os.Getenv("FRESHPLAN_BUCKET"); url != "" {
		store, err = storage.Open(context.Background(), url, getEnvOrDefault("FRESHPLAN_PREFIX", "plans"))
		if err != nil {
			log.Error("failed to open bucket", "url", url, "error", err)
			os.Exit(1)
		}
		defer store.Close()
	}

	deps := api.NewDeps(store, slog.Default())
	deps.RunTimeout = runTimeout
	api.SetupRoutes(app, deps)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down gracefully")
		_ = app.Shutdown()
	}()

	port := getEnvOrDefault("PORT", "8080")
	log.Info("freshplan API starting", "port", port, "max_body", strconv.Itoa(maxBody))

	if err := app.Listen(":" + port); err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	})
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
