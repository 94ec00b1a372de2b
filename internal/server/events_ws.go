/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/petfeeder/internal/events"
	"github.com/friendsincode/petfeeder/internal/telemetry"
)

type eventMessage struct {
	Type    events.EventType `json:"type"`
	Payload events.Payload   `json:"payload,omitempty"`
}

// handleEvents streams bus events to a websocket client. The optional
// "types" query parameter is a comma separated list of event types.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = events.AllEventTypes
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.APIWebSocketConnections.Inc()
	defer telemetry.APIWebSocketConnections.Dec()

	// the client never sends; CloseRead cancels ctx when it goes away
	ctx := conn.CloseRead(r.Context())

	merged := make(chan eventMessage, 16)
	for _, eventType := range eventTypes {
		sub := s.bus.Subscribe(eventType)
		defer s.bus.Unsubscribe(eventType, sub)

		go func(eventType events.EventType, sub events.Subscriber) {
			for {
				select {
				case <-ctx.Done():
					return
				case payload, ok := <-sub:
					if !ok {
						return
					}
					select {
					case merged <- eventMessage{Type: eventType, Payload: payload}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(eventType, sub)
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case <-ticker.C:
			if err := s.writeEvent(ctx, conn, eventMessage{Type: "ping"}); err != nil {
				s.logger.Debug().Err(err).Msg("websocket ping failed")
				return
			}
		case msg := <-merged:
			if err := s.writeEvent(ctx, conn, msg); err != nil {
				s.logger.Debug().Err(err).Msg("websocket write failed, client disconnected")
				return
			}
		}
	}
}

func (s *Server) writeEvent(ctx context.Context, conn *ws.Conn, msg eventMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, ws.MessageText, data)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	known := make(map[events.EventType]bool, len(events.AllEventTypes))
	for _, t := range events.AllEventTypes {
		known[t] = true
	}

	var out []events.EventType
	for _, part := range strings.Split(raw, ",") {
		t := events.EventType(strings.TrimSpace(part))
		if known[t] {
			out = append(out, t)
		}
	}
	return out
}
