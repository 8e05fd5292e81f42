package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"relickeep.gg/internal/ledger"
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

type Server struct {
	svc     *ledger.Service
	catalog *registry.Catalog
	log     *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(svc *ledger.Service, catalog *registry.Catalog, logger *log.Logger) *Server {
	s := &Server{
		svc:     svc,
		catalog: catalog,
		log:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		account, out := s.handshake(conn)
		if account == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Event push: every committed ledger event goes to every connected
		// client; the stream is replay-complete.
		events, unsubscribe, err := s.svc.Subscribe(ctx, cap(out))
		if err != nil {
			return
		}
		defer unsubscribe()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						cancel()
						return
					}
					b, err := json.Marshal(eventMsg(ev))
					if err != nil {
						continue
					}
					select {
					case out <- b:
					default:
						// Slow client: drop rather than stall.
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			if base.Type != protocol.TypeOp {
				continue
			}
			var op protocol.OpMsg
			if err := json.Unmarshal(msg, &op); err != nil {
				continue
			}
			if op.ProtocolVersion != protocol.Version {
				s.send(out, protocol.ResultMsg{
					Type:            protocol.TypeResult,
					ProtocolVersion: protocol.Version,
					Ref:             op.ID,
					Code:            protocol.ErrProtoBadRequest,
					Message:         "bad protocol_version",
				})
				continue
			}
			res, err := s.svc.Do(ctx, account, op)
			if err != nil {
				cancel()
				return
			}
			s.send(out, res)
		}
	}
}

func (s *Server) send(out chan []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) handshake(conn *websocket.Conn) (account string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	account = strings.TrimSpace(hello.Account)
	if account == "" {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "missing account"), time.Now().Add(time.Second))
		return "", nil
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 64
	}
	if maxQ > 1024 {
		maxQ = 1024
	}
	out = make(chan []byte, maxQ)

	slots := registry.Slots()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Account:         account,
		Slots:           make([]string, len(slots)),
		Catalog: protocol.CatalogDigests{
			Items: protocol.DigestRef{Digest: s.catalog.Digest, Count: len(s.catalog.Defs)},
		},
	}
	for i, slot := range slots {
		welcome.Slots[i] = string(slot)
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}

	return account, out
}

func eventMsg(ev ledger.Event) protocol.EventMsg {
	return protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Seq:             ev.Seq,
		Op:              ev.Op,
		Identity:        uint64(ev.Identity),
		Caller:          ev.Caller,
		Owner:           ev.Owner,
		Slot:            string(ev.Slot),
		ItemType:        ev.ItemType,
		Amount:          ev.Amount,
		Attribute:       string(ev.Attribute),
		Value:           ev.Value,
		Token:           ev.Token,
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
