package v1

import (
	"skill-exchange/internal/delivery/http/handler"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/usecase"
	"skill-exchange/internal/ws"

	"github.com/gofiber/fiber/v3"
)

type Deps struct {
	Auth      *middleware.AuthMiddleware
	Skills    usecase.SkillUsecase
	Matching  usecase.MatchingUsecase
	Lifecycle usecase.MatchLifecycle
	// WS is optional; without it the live match endpoint is not mounted.
	WS *ws.Handler
}

func Register(r fiber.Router, deps Deps) {
	if r == nil || deps.Auth == nil {
		return
	}

	skillHandler := handler.NewSkillHandler(deps.Skills)
	userSkillHandler := handler.NewUserSkillHandler(deps.Skills)
	matchHandler := handler.NewMatchHandler(deps.Matching, deps.Lifecycle)

	protected := r.Group("", deps.Auth.Middleware())

	skillHandler.RegisterRoutes(protected)
	userSkillHandler.RegisterRoutes(protected)
	matchHandler.RegisterRoutes(protected)
	if deps.WS != nil {
		deps.WS.RegisterRoutes(protected)
	}
}
