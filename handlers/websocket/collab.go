package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"collabcanvas/collab"

	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// socketPeer adapts a socket.io socket to the engine's outbound interface.
// Emit failures are dropped: delivery is best-effort by design.
type socketPeer struct {
	socket *socketio.Socket
}

func (p *socketPeer) SessionID() string { return string(p.socket.Id()) }

func (p *socketPeer) Send(event string, payload any) {
	if err := p.socket.Emit(event, payload); err != nil {
		logrus.WithField("event", event).WithError(err).Debug("emit failed")
	}
}

// SetupSocketIO wires the collaboration engine to a socket.io server. Every
// connection is admitted through the gateway before any room handler is
// registered; an unverified connection is told why and dropped.
func SetupSocketIO(gateway *collab.Gateway, engine *collab.Engine) *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		conn, err := gateway.Admit(credentialToken(socket), &socketPeer{socket: socket})
		if err != nil {
			_ = socket.Emit(collab.EventError, collab.ErrorSignal{Message: "Authentication required"})
			socket.Disconnect(true)
			return
		}

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On(collab.EventJoinCanvas, func(datas ...any) {
			payload := eventPayload(datas)
			if err := engine.Join(context.Background(), conn, payloadString(payload, "canvasId")); err != nil {
				emitError(socket, err)
			}
		})

		socket.On(collab.EventLeaveCanvas, func(datas ...any) {
			engine.Leave(conn)
		})

		socket.On(collab.EventGetActiveUsers, func(datas ...any) {
			payload := eventPayload(datas)
			canvasID := payloadString(payload, "canvasId")
			if canvasID == "" {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			_ = socket.Emit(collab.EventActiveUsers, collab.ActiveUsers{
				CanvasID: canvasID,
				Users:    engine.ActiveUsers(canvasID),
			})
		})

		socket.On(collab.EventDrawElement, func(datas ...any) {
			payload := eventPayload(datas)
			element, ok := payload["element"]
			if !ok {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			err := engine.Relay(conn, payloadString(payload, "canvasId"), collab.EventDrawElement, collab.DrawElement{
				UserID:  conn.Identity().ID,
				Element: element,
			})
			if err != nil {
				emitError(socket, err)
			}
		})

		socket.On(collab.EventUpdateElement, func(datas ...any) {
			payload := eventPayload(datas)
			elementID := payloadString(payload, "elementId")
			updates, ok := payload["updates"]
			if elementID == "" || !ok {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			err := engine.Relay(conn, payloadString(payload, "canvasId"), collab.EventUpdateElement, collab.UpdateElement{
				UserID:    conn.Identity().ID,
				ElementID: elementID,
				Updates:   updates,
			})
			if err != nil {
				emitError(socket, err)
			}
		})

		socket.On(collab.EventDeleteElement, func(datas ...any) {
			payload := eventPayload(datas)
			elementID := payloadString(payload, "elementId")
			if elementID == "" {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			err := engine.Relay(conn, payloadString(payload, "canvasId"), collab.EventDeleteElement, collab.DeleteElement{
				UserID:    conn.Identity().ID,
				ElementID: elementID,
			})
			if err != nil {
				emitError(socket, err)
			}
		})

		socket.On(collab.EventSaveCanvas, func(datas ...any) {
			payload := eventPayload(datas)
			data, ok := payload["data"]
			if !ok {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			raw, err := json.Marshal(data)
			if err != nil {
				emitError(socket, collab.ErrMalformedRequest)
				return
			}
			if err := engine.Save(context.Background(), conn, payloadString(payload, "canvasId"), raw); err != nil {
				emitError(socket, err)
				return
			}
			_ = socket.Emit(collab.EventCanvasSaved, collab.CanvasSaved{Success: true})
		})

		socket.On(collab.EventClearCanvas, func(datas ...any) {
			payload := eventPayload(datas)
			if err := engine.Clear(context.Background(), conn, payloadString(payload, "canvasId")); err != nil {
				emitError(socket, err)
				return
			}
			_ = socket.Emit(collab.EventCanvasSaved, collab.CanvasSaved{Success: true})
		})

		socket.On("disconnect", func(datas ...any) {
			engine.Disconnect(conn)
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// credentialToken digs the presented credential out of the handshake: the
// socket.io auth payload first, then a bearer header, then the authToken
// cookie the browser client sends.
func credentialToken(socket *socketio.Socket) string {
	handshake := socket.Handshake()
	if handshake == nil {
		return ""
	}

	if auth, ok := handshake.Auth.(map[string]any); ok {
		if token, ok := auth["token"].(string); ok && token != "" {
			return token
		}
	}

	for name, values := range handshake.Headers {
		if !strings.EqualFold(name, "Authorization") || len(values) == 0 {
			continue
		}
		parts := strings.SplitN(values[0], " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	for name, values := range handshake.Headers {
		if !strings.EqualFold(name, "Cookie") || len(values) == 0 {
			continue
		}
		for _, cookie := range strings.Split(values[0], ";") {
			cookie = strings.TrimSpace(cookie)
			if token, ok := strings.CutPrefix(cookie, "authToken="); ok {
				return token
			}
		}
	}

	return ""
}

// eventPayload returns the first argument of a socket.io event as an
// object; clients emit a single JSON object per event.
func eventPayload(datas []any) map[string]any {
	if len(datas) == 0 {
		return map[string]any{}
	}
	if payload, ok := datas[0].(map[string]any); ok {
		return payload
	}
	return map[string]any{}
}

func payloadString(payload map[string]any, key string) string {
	value, _ := payload[key].(string)
	return value
}

func emitError(socket *socketio.Socket, err error) {
	_ = socket.Emit(collab.EventError, collab.ErrorSignal{Message: errorMessage(err)})
}

// errorMessage keeps the messages the browser client already knows.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, collab.ErrCanvasNotFound):
		return "Canvas not found"
	case errors.Is(err, collab.ErrAccessDenied):
		return "You don't have access to this canvas"
	case errors.Is(err, collab.ErrNotJoined):
		return "Join the canvas first"
	case errors.Is(err, collab.ErrMalformedRequest):
		return "Malformed request"
	case errors.Is(err, collab.ErrSaveFailed):
		return "Failed to save canvas"
	case errors.Is(err, collab.ErrLoadFailed):
		return "Failed to load canvas"
	case errors.Is(err, collab.ErrNotAuthenticated):
		return "Authentication required"
	default:
		return "Failed to process request"
	}
}
