package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The API sits behind the gateway; origin policy is enforced there.
	CheckOrigin: func(*http.Request) bool { return true },
}

// eventStream upgrades the connection and relays bus events as JSON frames
// until the client disconnects.
func (h *handler) eventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already replied
	}
	defer conn.Close()

	ch, cancel := h.app.Bus.Subscribe(256)
	defer cancel()

	// Drain client frames so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for evt := range ch {
		if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			return
		}
		if err := conn.WriteJSON(evt); err != nil {
			h.log.WithError(err).Debug("event stream write failed")
			return
		}
	}
}
