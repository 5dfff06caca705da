package api

import (
	"log"
	"net/http"

	"execution-core/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// websocket streams lifecycle events to connected operators.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	watched := []events.Event{
		events.EventOrderPlaced,
		events.EventOrderFilled,
		events.EventOrderCancelled,
		events.EventOrderRejected,
		events.EventTradingPaused,
		events.EventTradingResumed,
		events.EventLeverageUpdated,
		events.EventRiskAlert,
	}

	ctx := c.Request.Context()
	merged := make(chan wsEvent, 100)
	for _, ev := range watched {
		stream, unsub := s.Bus.Subscribe(ev, 100)
		go func(ev events.Event, stream <-chan any, unsub func()) {
			defer unsub()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- wsEvent{Event: string(ev), Data: msg}:
					default: // slow client, drop
					}
				}
			}
		}(ev, stream, unsub)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-merged:
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}
}
