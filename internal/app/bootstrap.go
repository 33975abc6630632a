package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"skill-exchange/internal/config"
	"skill-exchange/internal/database"
	"skill-exchange/internal/delivery/http/handler"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/delivery/http/routes"
	v1 "skill-exchange/internal/delivery/http/routes/v1"
	"skill-exchange/internal/domain/user"
	"skill-exchange/internal/pkg/jwt"
	"skill-exchange/internal/ws"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

func New(c *Container) *App {
	f := fiber.New(fiber.Config{
		AppName:     c.Config.App.AppName,
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})

	registerGlobalMiddleware(f, c.Log)
	registerRoutes(f, c)

	return &App{Fiber: f, Container: c}
}

// Bootstrap builds the container and HTTP app and starts the websocket hub.
// The returned cleanup stops the hub and then releases the container.
func Bootstrap(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	go c.Hub.Run(hubCtx)

	cleanup := func() error {
		stopHub()
		select {
		case <-c.Hub.Done():
		case <-time.After(5 * time.Second):
			log.Warn().Msg("ws hub did not stop in time")
		}
		return c.Close()
	}

	return New(c), cleanup, nil
}

func registerGlobalMiddleware(app *fiber.App, log zerolog.Logger) {
	if app == nil {
		return
	}

	// The access log wraps the error middleware so it records final statuses.
	accessMw := middleware.NewAccessLogMiddleware(log)
	app.Use(accessMw.Middleware())

	errMw := middleware.NewErrorMiddleware(log)
	app.Use(errMw.Middleware())
}

func registerRoutes(app *fiber.App, c *Container) {
	if app == nil || c == nil {
		return
	}

	auth := middleware.NewAuthMiddleware(c.JWT, middleware.AuthOptions{
		AllowQueryToken: true,
		OnAuthenticated: provisionUser(c.Provisioner),
	})

	registry := routes.NewRegistry(
		handler.NewHealthHandler(runtimeInfo(c), healthChecks(c)...),
		v1.Deps{
			Auth:      auth,
			Skills:    c.Skills,
			Matching:  c.Matching,
			Lifecycle: c.Lifecycle,
			WS:        ws.NewHandler(c.Hub, c.Matching, c.Feed, c.Log),
		},
	)
	registry.Register(app)
}

func provisionUser(p user.Provisioner) func(context.Context, jwt.Claims) error {
	if p == nil {
		return nil
	}
	return func(ctx context.Context, claims jwt.Claims) error {
		return p.Ensure(ctx, user.User{
			ID:       claims.UserID,
			Email:    claims.Email,
			FullName: claims.FullName,
		})
	}
}

func healthChecks(c *Container) []handler.HealthCheck {
	var checks []handler.HealthCheck
	if c.DB != nil {
		checks = append(checks, handler.HealthCheck{Name: "postgres", Check: c.DB.Ping})
	}
	// Redis is only required when it carries the change feed.
	checks = append(checks, handler.HealthCheck{
		Name:     "redis",
		Optional: c.Broker != nil,
		Check:    c.Cache.Ping,
	})
	return checks
}

type poolStatter interface {
	Stats() database.PoolStats
}

func runtimeInfo(c *Container) func() map[string]any {
	return func() map[string]any {
		info := map[string]any{
			"store": c.Config.Store.Driver,
			"feed":  c.Config.Feed.Driver,
			"ws": map[string]int{
				"clients": c.Hub.ClientCount(),
				"users":   c.Hub.UserCount(),
			},
		}
		if ps, ok := c.DB.(poolStatter); ok {
			info["pool"] = ps.Stats()
		}
		if c.Broker != nil {
			info["broker"] = c.Broker.Metrics()
		}
		return info
	}
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
