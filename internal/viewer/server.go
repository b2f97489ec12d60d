// Package viewer serves the interactive graph view: a websocket feed of
// rendered frames with pointer hit-testing and chat passthrough.
package viewer

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"bepview/internal/artifact"
	"bepview/internal/chat"
	"bepview/internal/graph"
	"bepview/internal/render"
)

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger

	store    *artifact.Store
	chat     *chat.Client
	layout   *graph.Layout
	renderer *render.Renderer

	mu    sync.Mutex
	conns map[*wsConn]struct{}

	// genMu serializes frame publication. gen identifies the active
	// snapshot stream; a superseded stream's frames never reach the
	// renderer, even when its goroutine is still draining buffered ticks.
	genMu sync.Mutex
	gen   uint64
}

// New wires the viewer against the artifact store. chatClient may be
// nil, in which case chat messages over the socket are rejected.
func New(addr string, store *artifact.Store, chatClient *chat.Client, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		logger:   logger,
		store:    store,
		chat:     chatClient,
		layout:   graph.NewLayout(graph.DefaultLayoutConfig(), logger),
		renderer: render.New(render.DefaultConfig()),
		conns:    make(map[*wsConn]struct{}),
	}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(s.Handler(), &http2.Server{}),
	}

	// Every store replacement discards the running simulation and
	// starts over; there is no partial re-layout.
	store.Subscribe(s.onArtifacts)
	if set, ok := store.Current(); ok {
		s.onArtifacts(set)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

func (s *Server) Start() error {
	s.logger.Info("starting viewer", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.layout.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) onArtifacts(set *artifact.Set) {
	s.genMu.Lock()
	s.gen++
	gen := s.gen
	s.genMu.Unlock()

	if set == nil || set.Graph == nil {
		s.publishFrame(gen, nil, graph.Snapshot{})
		return
	}
	ticks, err := s.layout.Start(set.Graph)
	if err != nil {
		s.logger.Error("graph rejected by layout", zap.Error(err))
		return
	}
	go s.consume(gen, set.Graph, ticks)
}

func (s *Server) consume(gen uint64, g *graph.Graph, ticks <-chan graph.Snapshot) {
	for snap := range ticks {
		if !s.publishFrame(gen, g, snap) {
			return
		}
	}
}

// publishFrame renders and broadcasts one snapshot, unless the stream it
// belongs to has been superseded. Render and broadcast happen under
// genMu so a stale frame can never land after a newer one.
func (s *Server) publishFrame(gen uint64, g *graph.Graph, snap graph.Snapshot) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if gen != s.gen {
		return false
	}
	s.broadcastFrame(s.renderer.Render(g, snap))
	return true
}

func (s *Server) broadcastFrame(frame render.Frame) {
	out := outbound{
		Type:        "frame",
		SVG:         string(render.SVG(frame)),
		Tick:        frame.Tick,
		Done:        frame.Done,
		Placeholder: frame.Placeholder,
	}
	s.mu.Lock()
	conns := make([]*wsConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.send(out)
	}
}

func (s *Server) register(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) unregister(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

const indexPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>bepview</title></head>
<body>
<div id="graph"></div>
<pre id="log"></pre>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
const graphEl = document.getElementById("graph");
const logEl = document.getElementById("log");
ws.onmessage = (ev) => {
  const msg = JSON.parse(ev.data);
  if (msg.type === "frame") { graphEl.innerHTML = msg.svg; }
  if (msg.type === "selected") { logEl.textContent = "selected: " + msg.nodeId + " (" + msg.status + ")"; }
  if (msg.type === "chat") { logEl.textContent = msg.text; }
  if (msg.type === "error") { logEl.textContent = "error: " + msg.message; }
};
graphEl.addEventListener("click", (ev) => {
  const svg = graphEl.querySelector("svg");
  if (!svg) return;
  const rect = svg.getBoundingClientRect();
  ws.send(JSON.stringify({type: "pointer", x: ev.clientX - rect.left, y: ev.clientY - rect.top}));
});
</script>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}
