// Package api serves planning runs over HTTP
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vsinha/freshplan/pkg/application/dto"
	"github.com/vsinha/freshplan/pkg/application/services/planning"
	"github.com/vsinha/freshplan/pkg/domain/entities"
	"github.com/vsinha/freshplan/pkg/infrastructure/events"
	"github.com/vsinha/freshplan/pkg/infrastructure/metrics"
	"github.com/vsinha/freshplan/pkg/infrastructure/repositories/scenario"
	"github.com/vsinha/freshplan/pkg/infrastructure/storage"
	"github.com/vsinha/freshplan/pkg/interfaces/cli/output"
)

// Deps are the collaborators of the handlers. Store and Gatherer are optional:
// without a store results are not kept, without a gatherer /metrics is not served.
type Deps struct {
	Planner  *planning.Planner
	Events   events.EventStore
	Store    *storage.Store
	Gatherer prometheus.Gatherer
	// RunTimeout bounds a whole planning request; zero means no bound
	RunTimeout time.Duration
	Logger     *slog.Logger
}

// NewDeps wires a planner to a fresh event store and metrics registry
func NewDeps(store *storage.Store, logger *slog.Logger) Deps {
	if logger == nil {
		logger = slog.Default()
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	eventStore := events.NewInMemoryEventStore()
	return Deps{
		Planner: planning.NewPlanner(planning.Config{
			Events:  eventStore,
			Metrics: metrics.New("freshplan", reg),
			Logger:  logger,
		}),
		Events:   eventStore,
		Store:    store,
		Gatherer: reg,
		Logger:   logger,
	}
}

func SetupRoutes(app *fiber.App, deps Deps) {
	app.Get("/health", HealthCheckHandler)
	app.Get("/healthz", HealthCheckHandler)
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(deps.Gatherer)))
	}

	v1 := app.Group("/api/v1")
	plans := v1.Group("/plans")
	plans.Post("/", PlanHandler(deps))
	plans.Get("/:id", GetPlanHandler(deps))
	plans.Get("/:id/events", EventsHandler(deps))
}

func HealthCheckHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "UP",
		"service": "freshplan",
	})
}

func errorBody(code int, message string, extra fiber.Map) fiber.Map {
	body := fiber.Map{
		"code":    code,
		"message": message,
	}
	for k, v := range extra {
		body[k] = v
	}
	return fiber.Map{"error": body}
}

// PlanHandler plans the scenario in the request body. A run that halts part way
// answers 422 with the windows committed before the failure.
func PlanHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var doc scenario.Document
		if err := c.BodyParser(&doc); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody(fiber.StatusBadRequest, "Invalid JSON format",
				fiber.Map{"details": err.Error()}))
		}

		pc, err := doc.ToContext()
		if err != nil {
			return validationError(c, err)
		}

		ctx := c.UserContext()
		if deps.RunTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.RunTimeout)
			defer cancel()
		}

		result, err := deps.Planner.Plan(ctx, pc)
		if result == nil {
			if errors.Is(err, entities.ErrDataValidation) {
				return validationError(c, err)
			}
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(fiber.StatusInternalServerError, err.Error(), nil))
		}

		body, storeErr := respond(ctx, deps, result)
		if storeErr != nil {
			deps.logger().Error("failed to store plan", "run_id", result.RunID, "error", storeErr)
		}
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(errorBody(fiber.StatusUnprocessableEntity, err.Error(),
				fiber.Map{"partial": body}))
		}
		return c.Status(fiber.StatusOK).JSON(body)
	}
}

func validationError(c *fiber.Ctx, err error) error {
	extra := fiber.Map{}
	var dv *entities.DataValidationError
	if errors.As(err, &dv) {
		extra["problems"] = dv.Problems
	}
	return c.Status(fiber.StatusBadRequest).JSON(errorBody(fiber.StatusBadRequest, err.Error(), extra))
}

// respond builds the JSON document of a result and keeps it in the store
func respond(ctx context.Context, deps Deps, result *dto.PlanResult) (fiber.Map, error) {
	body := fiber.Map{
		"run_id":    result.RunID,
		"status":    result.Status,
		"summary":   result.Summary(),
		"fill_rate": result.FillRate(),
		"result":    result,
	}
	if deps.Store == nil {
		return body, nil
	}

	cfg := output.Config{Format: "json"}
	artifacts, err := output.Render(result, cfg)
	if err != nil {
		return body, err
	}
	cfg.Format = "parquet"
	tables, err := output.Render(result, cfg)
	if err != nil {
		return body, err
	}
	manifest, err := deps.Store.Publish(ctx, result.RunID, string(result.Status), append(artifacts, tables...))
	if err != nil {
		return body, err
	}
	body["manifest"] = manifest
	return body, nil
}

// GetPlanHandler returns a stored plan document
func GetPlanHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Store == nil {
			return c.Status(fiber.StatusNotFound).JSON(errorBody(fiber.StatusNotFound, "plans are not stored", nil))
		}
		data, err := deps.Store.Read(c.UserContext(), c.Params("id")+"/plan.json")
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(errorBody(fiber.StatusNotFound, "plan not found", nil))
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(fiber.StatusInternalServerError, err.Error(), nil))
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).Send(data)
	}
}

// EventsHandler lists the lifecycle events of a run
func EventsHandler(deps Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		evs, err := deps.Events.ReadEvents(c.Params("id"), c.QueryInt("from", 1))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(errorBody(fiber.StatusInternalServerError, err.Error(), nil))
		}
		if len(evs) == 0 {
			return c.Status(fiber.StatusNotFound).JSON(errorBody(fiber.StatusNotFound, "no events for run", nil))
		}

		out := make([]fiber.Map, 0, len(evs))
		for _, e := range evs {
			out = append(out, fiber.Map{
				"type":    e.Type(),
				"time":    e.Timestamp(),
				"version": e.Version(),
				"data":    e.Data(),
			})
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"run_id": c.Params("id"),
			"events": out,
			"count":  len(out),
		})
	}
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func RequestSizeLimiter(maxBytes int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Request().Header.ContentLength() > maxBytes {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(errorBody(fiber.StatusRequestEntityTooLarge,
				"Request body too large", nil))
		}
		return c.Next()
	}
}
