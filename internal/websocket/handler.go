package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/worktracker/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and attaches it to the
// signed-in user's channel. Cross-origin upgrades are rejected unless the
// origin matches one of originPatterns.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: originPatterns})
		if err != nil {
			logger.Warn("websocket accept", "user_id", ac.UserID, "error", err)
			return
		}
		defer conn.CloseNow()

		logger.Debug("websocket connected", "user_id", ac.UserID)
		NewClient(hub, conn, ac.UserID, ac.IsAdmin).Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
