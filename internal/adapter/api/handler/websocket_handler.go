package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"swapit/internal/adapter/api/middleware"
	"swapit/internal/domain/entity"
	"swapit/internal/domain/repository"
	ws "swapit/internal/infrastructure/websocket"
	"swapit/internal/usecase"
	"swapit/pkg/errors"
	"swapit/pkg/logger"
)

// Frame types pushed to and received from the client.
const (
	FrameTypeFeed          = "feed"
	FrameTypeConversations = "conversations"
	FrameTypeUnread        = "unread"
	FrameTypeMessages      = "messages"
	FrameTypeError         = "error"
	FrameTypePing          = "ping"
	FrameTypePong          = "pong"
	FrameTypeSwipe         = "swipe"
	FrameTypeSetFilters    = "set_filters"
	FrameTypeClearFilters  = "clear_filters"
	FrameTypeListen        = "listen_messages"
	FrameTypeStopListen    = "stop_messages"
)

type wsFrame struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
}

type swipeFrameData struct {
	ItemID string `json:"itemId"`
	Action string `json:"action"`
}

type filtersFrameData struct {
	Category string  `json:"category"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radiusKm"`
}

type listenFrameData struct {
	ConversationID string `json:"conversationId"`
}

type WebSocketHandler struct {
	wsManager      *ws.Manager
	hub            *usecase.SyncHub
	authMiddleware *middleware.AuthMiddleware
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // You should restrict this in production
	},
}

func NewWebSocketHandler(wsManager *ws.Manager, hub *usecase.SyncHub, authMiddleware *middleware.AuthMiddleware) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		hub:            hub,
		authMiddleware: authMiddleware,
	}
}

// HandleWebSocket upgrades the connection and binds it to the user's
// sync session: the derived feed, the conversation list and the unread
// count stream out as frames, and swipe/filter/listen commands stream
// in. Closing the connection releases the session.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	uid, err := h.resolveUID(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	session, err := h.hub.Acquire(context.Background(), uid)
	if err != nil {
		conn.Close()
		return err
	}

	conversation := &connState{}

	client := ws.NewClient(uid, conn)
	client.OnMessage = func(raw []byte) {
		h.handleClientFrame(uid, session, conversation, raw)
	}
	client.OnClose = func() {
		conversation.cancelAll()
		session.Release()
	}

	session.Catalog.OnFeed(func(feed []entity.Item) {
		h.send(uid, FrameTypeFeed, "", feed)
	})

	cancelRows, err := session.Conversations.ListenMyConversations(
		func(rows []entity.ConversationRow) {
			h.send(uid, FrameTypeConversations, "", rows)
		},
		func(err error) {
			logger.Warn("Conversation stream for %s cancelled: %v", uid, err)
		},
	)
	if err == nil {
		conversation.track("", cancelRows)
	}
	cancelUnread, err := session.Conversations.ListenUnreadCount(
		func(n int) {
			h.send(uid, FrameTypeUnread, "", map[string]int{"count": n})
		},
		nil,
	)
	if err == nil {
		conversation.track("unread", cancelUnread)
	}

	h.wsManager.Register <- client

	go client.ReadPump(h.wsManager)
	go client.WritePump()

	// The feed callback was registered after the session came up, so
	// push the current snapshot explicitly.
	h.send(uid, FrameTypeFeed, "", session.Catalog.Feed())

	return nil
}

func (h *WebSocketHandler) handleClientFrame(uid string, session *usecase.Session, conversation *connState, raw []byte) {
	var frame wsFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.sendError(uid, "Invalid frame format")
		return
	}

	switch frame.Type {
	case FrameTypePing:
		h.send(uid, FrameTypePong, "", nil)

	case FrameTypeSwipe:
		var data swipeFrameData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			h.sendError(uid, "Invalid swipe frame")
			return
		}
		if err := session.Catalog.Swipe(context.Background(), data.ItemID, data.Action); err != nil {
			h.sendError(uid, err.Error())
		}

	case FrameTypeSetFilters:
		var data filtersFrameData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			h.sendError(uid, "Invalid filters frame")
			return
		}
		filters := usecase.FeedFilters{Category: data.Category, RadiusKm: data.RadiusKm}
		if data.RadiusKm > 0 {
			filters.Center = &entity.ItemLocation{Lat: data.Lat, Lng: data.Lng}
		}
		session.Catalog.SetFilters(filters)

	case FrameTypeClearFilters:
		session.Catalog.ClearFilters()

	case FrameTypeListen:
		var data listenFrameData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.ConversationID == "" {
			h.sendError(uid, "Invalid listen frame")
			return
		}
		conversationID := data.ConversationID
		cancel, err := session.Conversations.ListenMessages(
			conversationID,
			func(messages []entity.Message) {
				h.send(uid, FrameTypeMessages, conversationID, messages)
			},
			func(err error) {
				logger.Warn("Message stream for %s cancelled: %v", conversationID, err)
			},
		)
		if err != nil {
			h.sendError(uid, "Failed to listen to conversation")
			return
		}
		conversation.track(conversationID, cancel)

	case FrameTypeStopListen:
		var data listenFrameData
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			h.sendError(uid, "Invalid stop frame")
			return
		}
		conversation.stop(data.ConversationID)

	default:
		h.sendError(uid, "Unknown frame type")
	}
}

func (h *WebSocketHandler) send(uid, frameType, conversationID string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Error("Failed to encode %s frame: %v", frameType, err)
		return
	}

	frame, err := json.Marshal(wsFrame{
		Type:           frameType,
		ConversationID: conversationID,
		Data:           raw,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	h.wsManager.SendToUser(uid, frame)
}

func (h *WebSocketHandler) sendError(uid, message string) {
	h.send(uid, FrameTypeError, "", map[string]string{"message": message})
}

func (h *WebSocketHandler) resolveUID(c echo.Context) (string, error) {
	if h.authMiddleware.DevMode() {
		uid := c.QueryParam("uid")
		if uid == "" {
			uid = c.Request().Header.Get("X-User-ID")
		}
		if uid == "" {
			return "", echo.NewHTTPError(http.StatusUnauthorized, "uid is required in development mode")
		}
		return uid, nil
	}

	token := c.QueryParam("token")
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "token query parameter is required")
	}
	uid, err := h.authMiddleware.GetUIDFromToken(c.Request().Context(), token)
	if err != nil {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}
	return uid, nil
}

// connState tracks the subscriptions attached to one connection so they
// can be cancelled together when it closes.
type connState struct {
	mu      sync.Mutex
	cancels map[string]repository.CancelFunc
}

func (s *connState) track(key string, cancel repository.CancelFunc) {
	s.mu.Lock()
	if s.cancels == nil {
		s.cancels = make(map[string]repository.CancelFunc)
	}
	if old, ok := s.cancels[key]; ok {
		old()
	}
	s.cancels[key] = cancel
	s.mu.Unlock()
}

func (s *connState) stop(key string) {
	s.mu.Lock()
	cancel, ok := s.cancels[key]
	delete(s.cancels, key)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

func (s *connState) cancelAll() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}
