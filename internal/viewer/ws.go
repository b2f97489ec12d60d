package viewer

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bepview/internal/render"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// The viewer binds to localhost; cross-origin pages are fine.
		return true
	},
}

type inbound struct {
	Type   string  `json:"type"`
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Query  string  `json:"query,omitempty"`
	FileID string  `json:"fileId,omitempty"`
}

type outbound struct {
	Type        string `json:"type"`
	SVG         string `json:"svg,omitempty"`
	Tick        int    `json:"tick,omitempty"`
	Done        bool   `json:"done,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	NodeID      string `json:"nodeId,omitempty"`
	Label       string `json:"label,omitempty"`
	Status      string `json:"status,omitempty"`
	Text        string `json:"text,omitempty"`
	Message     string `json:"message,omitempty"`
}

type wsConn struct {
	writeCh chan outbound
	done    chan struct{}
}

func (c *wsConn) send(out outbound) {
	select {
	case c.writeCh <- out:
	case <-c.done:
	default:
		// Slow consumer: drop the frame, a fresh one follows next tick.
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	c := &wsConn{
		writeCh: make(chan outbound, 32),
		done:    make(chan struct{}),
	}
	s.register(c)
	defer s.unregister(c)

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		s.logger.Warn("viewer ws set read deadline failed", zap.Error(err))
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case out := <-c.writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Greet the new connection with the latest frame so it doesn't wait
	// for the next tick.
	c.send(outbound{
		Type:        "frame",
		SVG:         s.currentSVG(),
		Placeholder: s.renderer.Frame().Placeholder,
	})

	for {
		var in inbound
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		s.dispatch(r.Context(), c, in)
	}
	close(c.done)
	<-writerDone
}

func (s *Server) currentSVG() string {
	return string(render.SVG(s.renderer.Frame()))
}
