package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/upnorway/sanity-plugin-media/internal/docstore"
	domainerrors "github.com/upnorway/sanity-plugin-media/internal/errors"
	"github.com/upnorway/sanity-plugin-media/internal/logger"
)

const (
	listenWriteWait  = 10 * time.Second
	listenPongWait   = 60 * time.Second
	listenPingPeriod = (listenPongWait * 9) / 10
	listenReadLimit  = 512
)

// handleDocumentListen streams backing store mutations over a websocket.
//
//	GET /api/v1/documents/listen?filter=_type == "media.tag"&params={"name":"x"}
//
// Each mutation is written as one JSON text message. The stream ends when
// either side closes.
func (s *Server) handleDocumentListen(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(
		slog.String(logger.KeyComponent, "listen"),
		slog.String("remote", getClientIP(r.Header.Get, r.RemoteAddr)),
	)

	if s.docs == nil {
		writeListenError(w, &domainerrors.Error{Code: domainerrors.CodeBackingStore, Message: "document store not configured"})
		return
	}

	q := docstore.Query{Filter: r.URL.Query().Get("filter")}
	if raw := r.URL.Query().Get("params"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Params); err != nil {
			writeListenError(w, domainerrors.Validation("params must be a JSON object"))
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Subscribe before upgrading so a bad filter is a plain HTTP error.
	events, err := s.docs.Listen(ctx, q)
	if err != nil {
		writeListenError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug("websocket upgrade failed", slog.String(logger.KeyError, err.Error()))
		return
	}
	defer conn.Close()

	s.metrics.ListenClientConnected()
	defer s.metrics.ListenClientDisconnected()
	log.Debug("listen client connected", slog.String("filter", q.Filter))

	go readUntilClosed(conn, cancel)

	ticker := time.NewTicker(listenPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("listen client disconnected")
			return

		case event, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(listenWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "document store closed"))
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Debug("listen write failed", slog.String(logger.KeyError, err.Error()))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(listenWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readUntilClosed drains client frames so pongs and close frames are
// processed, cancelling once the connection is gone.
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadLimit(listenReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(listenPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(listenPongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeListenError writes an error in the same shape as huma responses.
func writeListenError(w http.ResponseWriter, err error) {
	apiErr := fromError(err)
	if apiErr == nil {
		apiErr = &APIError{
			status:  http.StatusInternalServerError,
			Code:    statusToCode(http.StatusInternalServerError),
			Message: err.Error(),
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.GetStatus())
	_ = json.NewEncoder(w).Encode(apiErr)
}
