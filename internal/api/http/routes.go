package httpapi

import (
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/dashboard-aggregation/internal/market"
	"github.com/i474232898/dashboard-aggregation/internal/news"
	"github.com/i474232898/dashboard-aggregation/internal/notify"
	"github.com/i474232898/dashboard-aggregation/internal/scheduler"
	"github.com/i474232898/dashboard-aggregation/internal/store"
	"github.com/i474232898/dashboard-aggregation/internal/stream"
)

var validate = validator.New()

// State is the read side of the store.
type State interface {
	Weather() []store.WeatherSlot
	WeatherFor(city string) (store.WeatherSlot, error)
	Assets() []store.AssetSlot
	Asset(id string) (store.AssetSlot, error)
	History(id string) ([]market.PricePoint, error)
	News(feed news.Feed) (store.NewsSlot, error)
}

// Refresher triggers on-demand polls and reports poller status.
type Refresher interface {
	Trigger(domain scheduler.Domain) (bool, error)
	Status() []scheduler.Status
}

// Alerts lists the currently visible notifications.
type Alerts interface {
	Active() []notify.Alert
}

// StreamStats reports the live price feed's state.
type StreamStats interface {
	Stats() stream.Stats
}

// Deps are the handlers' collaborators. Stream may be nil when the live feed
// is disabled.
type Deps struct {
	State     State
	Refresher Refresher
	Alerts    Alerts
	Stream    StreamStats
}

// NewApp creates the Fiber app with the centralized error handler, global
// middleware and the health endpoint.
func NewApp(name string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               name,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": name,
		})
	})

	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		return c.JSON(d.State.Weather())
	})

	v1.Get("/weather/:city", func(c *fiber.Ctx) error {
		city, err := pathParam(c, "city")
		if err != nil {
			return err
		}
		slot, err := d.State.WeatherFor(city)
		if err != nil {
			return lookupError(err, "city")
		}
		return c.JSON(slot)
	})

	v1.Get("/crypto", func(c *fiber.Ctx) error {
		return c.JSON(d.State.Assets())
	})

	v1.Get("/crypto/:id", func(c *fiber.Ctx) error {
		id, err := pathParam(c, "id")
		if err != nil {
			return err
		}
		slot, err := d.State.Asset(id)
		if err != nil {
			return lookupError(err, "asset")
		}
		return c.JSON(slot)
	})

	v1.Get("/crypto/:id/history", func(c *fiber.Ctx) error {
		id, err := pathParam(c, "id")
		if err != nil {
			return err
		}
		points, err := d.State.History(id)
		if err != nil {
			return lookupError(err, "asset")
		}
		return c.JSON(fiber.Map{
			"id":     id,
			"points": points,
		})
	})

	v1.Get("/news", func(c *fiber.Ctx) error {
		q := newsQuery{Feed: c.Query("feed")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		feeds := news.Feeds
		if q.Feed != "" {
			feeds = []news.Feed{news.Feed(q.Feed)}
		}

		out := make([]store.NewsSlot, 0, len(feeds))
		for _, f := range feeds {
			slot, err := d.State.News(f)
			if err != nil {
				return lookupError(err, "feed")
			}
			out = append(out, slot)
		}
		return c.JSON(out)
	})

	v1.Get("/notifications", func(c *fiber.Ctx) error {
		return c.JSON(d.Alerts.Active())
	})

	v1.Get("/status", func(c *fiber.Ctx) error {
		body := fiber.Map{"pollers": d.Refresher.Status()}
		if d.Stream != nil {
			body["stream"] = d.Stream.Stats()
		}
		return c.JSON(body)
	})

	v1.Post("/refresh/:domain", func(c *fiber.Ctx) error {
		q := refreshRequest{Domain: c.Params("domain")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		accepted, err := d.Refresher.Trigger(scheduler.Domain(q.Domain))
		if err != nil {
			if errors.Is(err, scheduler.ErrUnknownDomain) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to trigger refresh")
		}
		if !accepted {
			return fiber.NewError(fiber.StatusConflict, "a fetch for "+q.Domain+" is already in flight")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"domain":   q.Domain,
			"accepted": true,
		})
	})
}

// newsQuery holds query parameters for the news endpoint.
type newsQuery struct {
	Feed string `validate:"omitempty,oneof=headlines analysis"`
}

type refreshRequest struct {
	Domain string `validate:"required,oneof=weather crypto news"`
}

// pathParam returns an unescaped route parameter ("New%20York" -> "New York").
func pathParam(c *fiber.Ctx, name string) (string, error) {
	v, err := url.PathUnescape(c.Params(name))
	if err != nil || v == "" {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func lookupError(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, what+" is not tracked")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to read "+what)
}
