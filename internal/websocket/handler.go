package websocket

import (
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/rturner/choreboard/internal/auth"
)

// Handler returns an HTTP handler that upgrades connections to WebSocket
// and runs them as Hub clients. It sits behind RequireAuth, so the
// session user is always present.
func Handler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := ""
		if user := auth.CurrentUser(r.Context()); user != nil {
			username = user.Username
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN; any origin may connect
		})
		if err != nil {
			hub.logger.Warn("websocket accept", "user", username, "error", err)
			return
		}

		client := NewClient(hub, conn, username)
		client.Run(r.Context())
	}
}
