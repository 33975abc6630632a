package ws

import (
	"context"
	"net/http"

	"skill-exchange/internal/changefeed"
	"skill-exchange/internal/delivery/http/dto"
	"skill-exchange/internal/delivery/http/middleware"
	"skill-exchange/internal/domain/match"
	"skill-exchange/internal/usecase"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Handler struct {
	hub      *Hub
	matching usecase.MatchingUsecase
	feed     changefeed.Feed
	log      zerolog.Logger
}

func NewHandler(hub *Hub, matching usecase.MatchingUsecase, feed changefeed.Feed, log zerolog.Logger) *Handler {
	return &Handler{hub: hub, matching: matching, feed: feed, log: log.With().Str("component", "ws").Logger()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/ws/matches", h.HandleMatchesWS)
}

// HandleMatchesWS upgrades the connection and streams the caller's matches:
// one snapshot after the initial load, then one after every change.
func (h *Handler) HandleMatchesWS(c fiber.Ctx) error {
	if h == nil || h.hub == nil {
		return fiber.ErrServiceUnavailable
	}
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		return middleware.Unauthorized("Unauthorized", nil)
	}

	fiberHandler := adaptor.HTTPHandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Warn().Err(err).Msg("ws upgrade failed")
			return
		}
		h.serve(conn, userID)
	})

	return fiberHandler(c)
}

func (h *Handler) serve(conn *websocket.Conn, userID uuid.UUID) {
	client := NewClient(h.hub, conn, userID, h.log)
	go client.WritePump()

	// The view outlives the upgrade request.
	ctx := context.Background()
	var version uint64
	view, err := usecase.NewMatchView(ctx, userID, h.matching, h.feed, usecase.MatchViewOptions{
		OnRefresh: func(items []match.Match) {
			version++
			h.push(ctx, client, userID, version, items)
		},
		Logger: h.log,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID.String()).Msg("match view start failed")
		if b, mErr := json.Marshal(ErrorMessage{Type: MessageTypeError, Message: "could not load matches"}); mErr == nil {
			client.Enqueue(b)
		}
		client.Close()
		return
	}
	client.attach(view)

	h.hub.Register(client)
	go client.ReadPump()
}

func (h *Handler) push(ctx context.Context, client *Client, userID uuid.UUID, version uint64, items []match.Match) {
	details, err := h.matching.Describe(ctx, items)
	if err != nil {
		h.log.Warn().Err(err).Str("user_id", userID.String()).Msg("describe matches failed, snapshot skipped")
		return
	}
	msg := SnapshotMessage{
		Type:      MessageTypeSnapshot,
		Version:   version,
		Matches:   dto.NewMatchResponses(userID, details),
		Timestamp: now(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("encode snapshot failed")
		return
	}
	client.Enqueue(b)
}
