package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"

	"relickeep.gg/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		account  = flag.String("account", "probe", "account name")
		identity = flag.Uint64("identity", 0, "identity to poll (0 = listen only)")
		every    = flag.Duration("every", 10*time.Second, "poll interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[probe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Account:         *account,
		Capabilities: protocol.HelloCapabilities{
			MaxQueue: 64,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	if *identity != 0 {
		go poll(conn, *identity, *every, stop)
	}

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME account=%s slots=%v catalog_digest=%s items=%d", w.Account, w.Slots, w.Catalog.Items.Digest, w.Catalog.Items.Count)

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if !r.OK {
				logger.Printf("RESULT ref=%s code=%s msg=%s", r.Ref, r.Code, r.Message)
				continue
			}
			switch {
			case r.Attributes != nil:
				logger.Printf("RESULT ref=%s attributes=%v", r.Ref, r.Attributes)
			case r.Balance != nil:
				logger.Printf("RESULT ref=%s balance=%d", r.Ref, *r.Balance)
			case r.Equipped != nil:
				logger.Printf("RESULT ref=%s equipped=%s x%d", r.Ref, r.Equipped.ItemType, r.Equipped.Amount)
			default:
				logger.Printf("RESULT ref=%s ok", r.Ref)
			}

		case protocol.TypeEvent:
			var ev protocol.EventMsg
			if err := json.Unmarshal(msg, &ev); err != nil {
				continue
			}
			logger.Printf("EVENT seq=%d op=%s identity=%d caller=%s", ev.Seq, ev.Op, ev.Identity, ev.Caller)
		}
	}
}

// poll issues read-only ops on a timer so the operator can watch an
// identity's attributes drift as upgrades land.
func poll(conn *websocket.Conn, identity uint64, every time.Duration, stop <-chan os.Signal) {
	t := time.NewTicker(every)
	defer t.Stop()
	n := 0
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		n++
		op := protocol.OpMsg{
			Type:            protocol.TypeOp,
			ProtocolVersion: protocol.Version,
			ID:              fmt.Sprintf("probe-%d", n),
			Op:              protocol.OpGetAttributes,
			Identity:        identity,
		}
		_ = conn.WriteJSON(op)
	}
}
