package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/gorilla/websocket"
	"github.com/shimmeringbee/logwrap"
	"github.com/ugokukun/controller/state"
	"net/http"
)

var wsUpgrader = websocket.Upgrader{}

type websocketController struct {
	eventbus state.EventSubscriber
	logger   logwrap.Logger
}

const WebsocketConnectionEventBufferSize = 16

// WebsocketMessage envelopes a run event with its type name so clients can
// dispatch without probing fields.
type WebsocketMessage struct {
	Type  string `json:"type"`
	Event any    `json:"event"`
}

func mapEvent(event any) (WebsocketMessage, error) {
	switch e := event.(type) {
	case state.RunStarted:
		return WebsocketMessage{Type: "RunStarted", Event: e}, nil
	case state.RowStarted:
		return WebsocketMessage{Type: "RowStarted", Event: e}, nil
	case state.RowCompleted:
		return WebsocketMessage{Type: "RowCompleted", Event: e}, nil
	case state.RunCompleted:
		return WebsocketMessage{Type: "RunCompleted", Event: e}, nil
	case state.RunFailed:
		return WebsocketMessage{Type: "RunFailed", Event: e}, nil
	default:
		return WebsocketMessage{}, fmt.Errorf("unmappable event type: %T", event)
	}
}

func (z *websocketController) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	c, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer c.Close()

	z.handleConnection(c)
}

func (z *websocketController) handleConnection(c *websocket.Conn) {
	eventsCh := make(chan any, WebsocketConnectionEventBufferSize)
	shutdownCh := make(chan struct{})

	z.eventbus.Subscribe(eventsCh)

	// closing shutdownCh never blocks, even when serviceOutgoing already
	// exited on a write error.
	defer func() {
		z.eventbus.Unsubscribe(eventsCh)
		close(shutdownCh)
	}()

	go z.serviceOutgoing(c, eventsCh, shutdownCh)
	z.serviceIncoming(c)
}

func (z *websocketController) serviceOutgoing(c *websocket.Conn, ch chan any, shutCh chan struct{}) {
	for {
		select {
		case event := <-ch:
			message, err := mapEvent(event)
			if err != nil {
				z.logger.LogDebug(context.Background(), "Skipping event without websocket mapping.", logwrap.Err(err))
				continue
			}

			if d, err := json.Marshal(message); err != nil {
				z.logger.LogError(context.Background(), "Failed to marshal message to websocket.", logwrap.Err(err))
				return
			} else {
				if err := c.WriteMessage(websocket.TextMessage, d); err != nil {
					z.logger.LogError(context.Background(), "Failed to send message to websocket.", logwrap.Err(err))
					return
				}
			}
		case <-shutCh:
			return
		}
	}
}

func (z *websocketController) serviceIncoming(c *websocket.Conn) {
	for {
		_, _, err := c.ReadMessage()
		if err != nil {
			if _, ok := err.(*websocket.CloseError); ok {
				z.logger.LogDebug(context.Background(), "Websocket closed.", logwrap.Err(err))
				return
			}
			z.logger.LogError(context.Background(), "Failed to read message from websocket.", logwrap.Err(err))
			return
		}
	}
}
