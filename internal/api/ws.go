/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/munin_audio/internal/events"
)

// handleEventsWS streams engine events to a WebSocket client. An optional
// repeatable "type" query parameter filters the subscription.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	var types []events.Type
	for _, raw := range r.URL.Query()["type"] {
		types = append(types, events.Type(raw))
	}

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	sub := s.engine.Events().Subscribe(types...)
	defer s.engine.Events().Unsubscribe(sub)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "")
			return
		case event, ok := <-sub:
			if !ok {
				conn.Close(ws.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, event); err != nil {
				s.logger.Debug().Err(err).Msg("websocket client gone")
				return
			}
		}
	}
}
