package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// RequestEvent is pushed to the operator for every request
type RequestEvent struct {
	Event   string  `json:"event"`
	Request Request `json:"request"`
}

// DecisionMessage is sent back by the operator
type DecisionMessage struct {
	ID       string `json:"id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

type pendingDecision struct {
	req      Request
	response chan Decision
}

// WebSocketPresenter forwards requests to a remote operator connected over a
// websocket and waits for their answer. One operator is served at a time; a
// new connection replaces the previous one and receives every pending request.
type WebSocketPresenter struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conn    *websocket.Conn
	ready   chan struct{}
	pending map[string]*pendingDecision

	writeMu sync.Mutex
}

// NewWebSocketPresenter creates a presenter. Mount it as an http.Handler.
func NewWebSocketPresenter() *WebSocketPresenter {
	return &WebSocketPresenter{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		ready:   make(chan struct{}),
		pending: make(map[string]*pendingDecision),
	}
}

// ServeHTTP upgrades an operator connection and reads decisions until it closes
func (p *WebSocketPresenter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade operator connection")
		return
	}

	resend := p.attach(conn)
	log.Info().
		Str("remote", r.RemoteAddr).
		Int("pending", len(resend)).
		Msg("Approval operator connected")

	for _, req := range resend {
		if err := p.send(conn, req); err != nil {
			log.Error().Err(err).Str("request_id", req.ID).Msg("Failed to resend approval request")
		}
	}

	defer func() {
		p.detach(conn)
		conn.Close()
		log.Info().Str("remote", r.RemoteAddr).Msg("Approval operator disconnected")
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("Operator websocket error")
			}
			return
		}

		var msg DecisionMessage
		if err := json.Unmarshal(message, &msg); err != nil || msg.ID == "" {
			log.Warn().Str("message", string(message)).Msg("Ignoring malformed operator message")
			continue
		}

		if err := p.resolve(msg); err != nil {
			log.Warn().Err(err).Msg("Operator decision not applied")
		}
	}
}

// PresentAndCollect waits for an operator, sends req and blocks for the answer
func (p *WebSocketPresenter) PresentAndCollect(ctx context.Context, req Request) (Decision, error) {
	entry := &pendingDecision{req: req, response: make(chan Decision, 1)}

	p.mu.Lock()
	p.pending[req.ID] = entry
	conn, ready := p.conn, p.ready
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.pending, req.ID)
		p.mu.Unlock()
	}()

	// A connection attached later resends everything pending, including req.
	if conn != nil {
		if err := p.send(conn, req); err != nil {
			log.Warn().Err(err).Str("request_id", req.ID).Msg("Failed to send approval request, waiting for reconnect")
		}
	} else {
		log.Info().Str("request_id", req.ID).Msg("Waiting for approval operator to connect")
		select {
		case <-ready:
		case <-ctx.Done():
			return Decision{Approved: false, Reason: "no operator connected"}, ctx.Err()
		case d := <-entry.response:
			return d, nil
		}
	}

	select {
	case d := <-entry.response:
		return d, nil
	case <-ctx.Done():
		return Decision{Approved: false, Reason: "timeout"}, ctx.Err()
	}
}

func (p *WebSocketPresenter) attach(conn *websocket.Conn) []Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		p.conn.Close()
	} else {
		close(p.ready)
	}
	p.conn = conn

	out := make([]Request, 0, len(p.pending))
	for _, entry := range p.pending {
		out = append(out, entry.req)
	}
	return out
}

func (p *WebSocketPresenter) detach(conn *websocket.Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == conn {
		p.conn = nil
		p.ready = make(chan struct{})
	}
}

func (p *WebSocketPresenter) send(conn *websocket.Conn, req Request) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return conn.WriteJSON(RequestEvent{Event: "approval.request", Request: req})
}

func (p *WebSocketPresenter) resolve(msg DecisionMessage) error {
	p.mu.Lock()
	entry, ok := p.pending[msg.ID]
	p.mu.Unlock()

	if !ok {
		return fmt.Errorf("approval %s not found", msg.ID)
	}

	reason := msg.Reason
	if reason == "" {
		reason = "denied by operator"
		if msg.Approved {
			reason = "approved by operator"
		}
	}

	select {
	case entry.response <- Decision{Approved: msg.Approved, Reason: reason}:
		return nil
	default:
		return fmt.Errorf("approval %s already resolved", msg.ID)
	}
}
