package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/emiller/starjar/internal/auth"
)

// HandleWebSocket upgrades the connection and runs it as a client in the
// caller's family feed. Must be mounted behind the auth middleware so the
// family id is present on the request context.
func HandleWebSocket(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		familyID := auth.FamilyID(r.Context())
		if familyID == 0 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // same-host clients on the home LAN
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, familyID)
		client.Run(r.Context())
	}
}
