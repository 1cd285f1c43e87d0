// Package server is the websocket edge of the realtime core: it upgrades
// connections, routes inbound envelopes and owns the per-connection error
// boundary. Failures become one error-notification to the triggering
// connection; they never reach other participants.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tidechat/realtime/internal/call"
	"github.com/tidechat/realtime/internal/config"
	"github.com/tidechat/realtime/internal/domain"
	"github.com/tidechat/realtime/internal/hub"
	"github.com/tidechat/realtime/internal/logging"
	"github.com/tidechat/realtime/internal/presence"
)

type Server struct {
	upgrader websocket.Upgrader
	registry *Registry
	hub      *hub.Hub
	presence *presence.Registry
	calls    *call.Signaling
	logger   *logging.Logger
	options  config.WebSocketConfig
}

func New(
	registry *Registry,
	h *hub.Hub,
	reg *presence.Registry,
	calls *call.Signaling,
	logger *logging.Logger,
	options config.WebSocketConfig,
) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		registry: registry,
		hub:      h,
		presence: reg,
		calls:    calls,
		logger:   logger,
		options:  options,
	}
}

// Handle upgrades the request and serves the connection until it drops.
func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	handleID := uuid.NewString()
	client := newClient(handleID, conn,
		s.options.SendQueueSize,
		s.options.WriteTimeout,
		s.options.ReadTimeout,
		s.logger,
	)

	if err := s.hub.Register(client); err != nil {
		s.logger.Error("failed to register client", "client_id", handleID, "error", err)
		conn.Close()
		return
	}

	s.logger.Info("websocket connection established", "client_id", handleID)

	go client.writePump()
	s.readPump(client, conn)
	s.disconnect(handleID)
}

func (s *Server) readPump(client *wsClient, conn *websocket.Conn) {
	conn.SetReadLimit(s.options.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.options.ReadTimeout))
		return nil
	})

	for {
		wsType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket unexpected close", "client_id", client.id, "error", err)
			} else {
				s.logger.Info("websocket connection closed", "client_id", client.id)
			}
			return
		}

		if wsType != websocket.TextMessage && wsType != websocket.BinaryMessage {
			continue
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			s.logger.Warn("failed to unmarshal envelope", "client_id", client.id, "error", err)
			s.notifyError(client, domain.E(domain.KindInvalidRequest, "malformed event"))
			continue
		}

		ctx := WithSession(context.Background(), Session{HandleID: client.id})

		res, err := s.registry.Handle(ctx, &env)
		if err != nil {
			s.logger.Warn("event handler failed",
				"client_id", client.id,
				"event", env.Type,
				"error", err,
			)
			s.notifyError(client, err)
			continue
		}

		if res != nil {
			frame, err := res.Encode()
			if err != nil {
				s.logger.Error("failed to encode response", "event", res.Type, "error", err)
				continue
			}
			if err := client.Send(frame); err != nil {
				s.logger.Debug("failed to send response", "client_id", client.id, "error", err)
			}
		}
	}
}

func (s *Server) disconnect(handleID string) {
	s.hub.Unregister(handleID)

	userID, wentOffline, online := s.presence.Unregister(handleID)
	if userID == "" {
		return
	}

	s.broadcastPresence(online)

	if wentOffline {
		s.calls.HandleDisconnect(userID)
	}
}

func (s *Server) broadcastPresence(online []string) {
	env, err := domain.NewEnvelope(domain.EventUpdateOnlineUsers, domain.OnlineUsers{Users: online})
	if err != nil {
		s.logger.Error("failed to build presence envelope", "error", err)
		return
	}
	frame, err := env.Encode()
	if err != nil {
		s.logger.Error("failed to encode presence envelope", "error", err)
		return
	}
	s.hub.Broadcast(frame)
}

func (s *Server) notifyError(client *wsClient, err error) {
	env, eerr := domain.NewEnvelope(domain.EventErrorNotification, domain.ErrorNotification{
		Message: domain.UserMessage(err),
	})
	if eerr != nil {
		s.logger.Error("failed to build error envelope", "error", eerr)
		return
	}
	frame, eerr := env.Encode()
	if eerr != nil {
		return
	}
	if serr := client.Send(frame); serr != nil {
		s.logger.Debug("failed to deliver error notification", "client_id", client.id, "error", serr)
	}
}
