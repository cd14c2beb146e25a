package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/coder/websocket"
	"github.com/skychatorg/skychat-xterm/internal/broker"
	"github.com/skychatorg/skychat-xterm/internal/logutil"
	"github.com/skychatorg/skychat-xterm/internal/middleware"
	"github.com/skychatorg/skychat-xterm/internal/relay"
)

// Broker is set from main.go during init.
var Broker *broker.Registry

// wsReadLimit caps raw WebSocket frames well above the relay's input limit,
// leaving room for JSON framing overhead.
const wsReadLimit = 64 * 1024

// TerminalWS attaches the calling user to their terminal session over a
// WebSocket, creating the session on first use.
//
// Query parameters:
//   - fresh=1: discard any existing session and start a new process. The
//     old session's viewers see an exit frame.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	forceNew := r.URL.Query().Get("fresh") == "1"

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("[terminal] websocket accept failed: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	sess, err := Broker.GetOrCreate(ctx, user.Username, forceNew)
	if err != nil {
		log.Printf("[terminal] session creation failed for %s: %v",
			logutil.SanitizeForLog(user.Username), err)
		conn.Close(4500, "Failed to start terminal")
		return
	}

	viewer := relay.NewViewer()
	if err := Broker.Attach(sess, viewer); err != nil {
		conn.Close(4409, "Session is closing")
		return
	}
	defer func() {
		Broker.Detach(sess, viewer.ID())
		viewer.Close()
	}()

	conn.SetReadLimit(wsReadLimit)

	relayCtx, relayCancel := context.WithCancel(ctx)
	defer relayCancel()

	viewer.Send(relay.ConnectedMessage())

	// Session -> browser. Ends when the viewer closes, either because this
	// handler is leaving or because the session tore down; in the latter
	// case the exit frame has already been queued, so drain then close.
	go func() {
		defer relayCancel()
		for frame := range viewer.Messages() {
			if err := conn.Write(relayCtx, websocket.MessageText, frame); err != nil {
				return
			}
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	limiter := relay.NewRateLimiter(relay.MessageRateLimit, relay.MessageRateBurst)

	// Browser -> session
	for {
		msgType, data, err := conn.Read(relayCtx)
		if err != nil {
			return
		}
		if !limiter.Allow() {
			continue
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := relay.Apply(sess, viewer, data); err != nil {
			log.Printf("[terminal] input relay ended for %s: %v",
				logutil.SanitizeForLog(user.Username), err)
			return
		}
	}
}
