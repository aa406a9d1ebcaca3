package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 10 * time.Second

type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// Serve upgrades the request and runs the connection until the client goes
// away. The caller has already validated role.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, role Role, userID string, originPatterns []string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	// The departure notice goes out after the request context is done.
	ctx := context.WithoutCancel(r.Context())
	client := h.Register(ctx, role, userID, &wsSender{conn: conn})
	defer h.Unregister(ctx, client)

	for {
		typ, data, err := conn.Read(r.Context())
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.Logger.Debug().Err(err).Str("user_id", userID).Msg("relay read ended")
			}
			return nil
		}
		if typ != websocket.MessageText {
			h.send(ctx, client, h.system(TypeError, "Invalid message format"))
			continue
		}
		h.HandleInbound(ctx, client, data)
	}
}
