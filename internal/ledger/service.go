package ledger

import (
	"context"
	"errors"
	"sync/atomic"

	"relickeep.gg/internal/persistence/snapshot"
	"relickeep.gg/internal/protocol"
	"relickeep.gg/internal/registry"
)

// Service owns a Ledger and serializes every operation through a single
// loop goroutine. Transports and admin endpoints talk to it through the
// Request helpers; nothing outside the loop touches ledger state.
type Service struct {
	cfg    ServiceConfig
	ledger *Ledger

	ops       chan opReq
	admin     chan adminReq
	snapReqs  chan snapReq
	subscribe chan subReq
	unsub     chan int

	snapshotSink chan<- snapshot.StateV1
	journal      EventSink

	subs      map[int]chan Event
	nextSubID int

	opsTotal    atomic.Uint64
	failedTotal atomic.Uint64
	lastSeq     atomic.Uint64
	identities  atomic.Int64
	opsSince    uint64
}

type ServiceConfig struct {
	KeepID           string
	QueueSize        int
	SnapshotEveryOps uint64

	// TokenResolver maps a configured token ID to a live paymaster. Used by
	// the admin SetPaymentToken path.
	TokenResolver func(id string) Paymaster
}

type opReq struct {
	Caller string
	Op     protocol.OpMsg
	Resp   chan protocol.ResultMsg
}

type adminKind int

const (
	adminMint adminKind = iota + 1
	adminBurn
	adminSetCost
	adminSetToken
	adminGrantItem
	adminGrantToken
)

type adminReq struct {
	Kind     adminKind
	Owner    string
	Caller   string
	ID       IdentityID
	Cost     uint64
	Token    string
	ItemType string
	Amount   uint64
	Resp     chan adminResp
}

type adminResp struct {
	ID  IdentityID
	Err error
}

type snapReq struct {
	Resp chan snapResp
}

type snapResp struct {
	Seq uint64
	Err error
}

type subReq struct {
	Buf  int
	Resp chan subResp
}

type subResp struct {
	ID int
	Ch chan Event
}

func NewService(cfg ServiceConfig, l *Ledger) *Service {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	s := &Service{
		cfg:       cfg,
		ledger:    l,
		ops:       make(chan opReq, cfg.QueueSize),
		admin:     make(chan adminReq, 16),
		snapReqs:  make(chan snapReq, 4),
		subscribe: make(chan subReq, 16),
		unsub:     make(chan int, 16),
		subs:      map[int]chan Event{},
	}
	l.SetEventSink(sinkFunc(s.fanout))
	return s
}

type sinkFunc func(Event) error

func (f sinkFunc) WriteEvent(ev Event) error { return f(ev) }

// SetJournal attaches the durable event sink. Must be called before Run.
func (s *Service) SetJournal(sink EventSink) { s.journal = sink }

// SetSnapshotSink attaches the off-thread snapshot writer. Must be called
// before Run.
func (s *Service) SetSnapshotSink(ch chan<- snapshot.StateV1) { s.snapshotSink = ch }

// fanout runs on the loop goroutine for every committed event.
func (s *Service) fanout(ev Event) error {
	s.lastSeq.Store(ev.Seq)
	switch ev.Op {
	case EventIdentityMinted:
		s.identities.Add(1)
	case EventIdentityBurned:
		s.identities.Add(-1)
	}
	if s.journal != nil {
		_ = s.journal.WriteEvent(ev)
	}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber: drop rather than stall the ledger.
		}
	}
	return nil
}

// Run processes operations until ctx is cancelled. All ledger access
// happens here.
func (s *Service) Run(ctx context.Context) error {
	s.lastSeq.Store(s.ledger.Seq())
	s.identities.Store(int64(s.ledger.IdentityCount()))
	for {
		select {
		case <-ctx.Done():
			for _, ch := range s.subs {
				close(ch)
			}
			s.subs = map[int]chan Event{}
			return ctx.Err()

		case req := <-s.ops:
			res := s.execute(req.Caller, req.Op)
			req.Resp <- res
			s.afterMutation(res.OK && isMutating(req.Op.Op))

		case req := <-s.admin:
			req.Resp <- s.executeAdmin(req)
			s.afterMutation(true)

		case req := <-s.snapReqs:
			seq := s.ledger.Seq()
			err := s.emitSnapshot()
			req.Resp <- snapResp{Seq: seq, Err: err}

		case req := <-s.subscribe:
			buf := req.Buf
			if buf <= 0 {
				buf = 64
			}
			ch := make(chan Event, buf)
			s.nextSubID++
			id := s.nextSubID
			s.subs[id] = ch
			req.Resp <- subResp{ID: id, Ch: ch}

		case id := <-s.unsub:
			if ch, ok := s.subs[id]; ok {
				close(ch)
				delete(s.subs, id)
			}
		}
	}
}

func isMutating(op string) bool {
	switch op {
	case protocol.OpEquip, protocol.OpUnequip, protocol.OpUpgrade:
		return true
	}
	return false
}

func (s *Service) afterMutation(mutated bool) {
	if !mutated {
		return
	}
	s.opsSince++
	if s.cfg.SnapshotEveryOps > 0 && s.opsSince >= s.cfg.SnapshotEveryOps {
		_ = s.emitSnapshot()
	}
}

func (s *Service) emitSnapshot() error {
	s.opsSince = 0
	if s.snapshotSink == nil {
		return nil
	}
	snap := s.ledger.ExportSnapshot(s.cfg.KeepID)
	select {
	case s.snapshotSink <- snap:
		return nil
	default:
		return errors.New("snapshot sink busy")
	}
}

func (s *Service) execute(caller string, op protocol.OpMsg) protocol.ResultMsg {
	s.opsTotal.Add(1)
	res := s.executeOp(caller, op)
	if !res.OK {
		s.failedTotal.Add(1)
	}
	res.Type = protocol.TypeResult
	res.ProtocolVersion = protocol.Version
	res.Ref = op.ID
	return res
}

func (s *Service) executeOp(caller string, op protocol.OpMsg) protocol.ResultMsg {
	fail := func(err error) protocol.ResultMsg {
		code := CodeOf(err)
		if code == "" {
			code = protocol.ErrInternal
		}
		return protocol.ResultMsg{OK: false, Code: code, Message: err.Error()}
	}
	badReq := func(format string, args ...any) protocol.ResultMsg {
		return fail(opErr(protocol.ErrBadRequest, format, args...))
	}

	switch op.Op {
	case protocol.OpEquip:
		slot, ok := registry.ParseSlot(op.Slot)
		if !ok {
			return badReq("unknown slot %q", op.Slot)
		}
		if err := s.ledger.Equip(caller, IdentityID(op.Identity), slot, op.ItemType, op.Amount); err != nil {
			return fail(err)
		}
		return protocol.ResultMsg{OK: true}

	case protocol.OpUnequip:
		slot, ok := registry.ParseSlot(op.Slot)
		if !ok {
			return badReq("unknown slot %q", op.Slot)
		}
		if err := s.ledger.Unequip(caller, IdentityID(op.Identity), slot); err != nil {
			return fail(err)
		}
		return protocol.ResultMsg{OK: true}

	case protocol.OpUpgrade:
		attr, ok := ParseAttribute(op.Attribute)
		if !ok {
			return badReq("unknown attribute %q", op.Attribute)
		}
		if err := s.ledger.UpgradeAttribute(caller, IdentityID(op.Identity), attr); err != nil {
			return fail(err)
		}
		return protocol.ResultMsg{OK: true}

	case protocol.OpGetEquipped:
		slot, ok := registry.ParseSlot(op.Slot)
		if !ok {
			return badReq("unknown slot %q", op.Slot)
		}
		item, equipped := s.ledger.GetEquippedItem(IdentityID(op.Identity), slot)
		res := protocol.ResultMsg{OK: true}
		if equipped {
			res.Equipped = &protocol.EquippedRef{ItemType: item.ItemType, Amount: item.Amount}
		}
		return res

	case protocol.OpIsSlotEquipped:
		slot, ok := registry.ParseSlot(op.Slot)
		if !ok {
			return badReq("unknown slot %q", op.Slot)
		}
		occupied := s.ledger.IsSlotEquipped(IdentityID(op.Identity), slot)
		return protocol.ResultMsg{OK: true, Occupied: &occupied}

	case protocol.OpCustodyBalance:
		if op.ItemType == "" {
			return badReq("missing item_type")
		}
		bal := s.ledger.CustodyBalance(IdentityID(op.Identity), op.ItemType)
		return protocol.ResultMsg{OK: true, Balance: &bal}

	case protocol.OpGetAttributes:
		attrs, err := s.ledger.GetAttributes(IdentityID(op.Identity))
		if err != nil {
			return fail(err)
		}
		return protocol.ResultMsg{OK: true, Attributes: attrs.Map()}
	}
	return badReq("unknown op %q", op.Op)
}

func (s *Service) executeAdmin(req adminReq) adminResp {
	switch req.Kind {
	case adminMint:
		id, err := s.ledger.MintIdentity(req.Owner)
		return adminResp{ID: id, Err: err}
	case adminBurn:
		return adminResp{Err: s.ledger.BurnIdentity(req.Caller, req.ID)}
	case adminSetCost:
		s.ledger.SetUpgradeCost(req.Cost)
		return adminResp{}
	case adminSetToken:
		if s.cfg.TokenResolver == nil {
			return adminResp{Err: errors.New("no token resolver configured")}
		}
		p := s.cfg.TokenResolver(req.Token)
		if p == nil {
			return adminResp{Err: errors.New("unknown payment token " + req.Token)}
		}
		s.ledger.SetPaymentToken(p)
		return adminResp{}
	case adminGrantItem:
		return adminResp{Err: s.ledger.GrantItem(req.Owner, req.ItemType, req.Amount)}
	case adminGrantToken:
		if s.cfg.TokenResolver == nil {
			return adminResp{Err: errors.New("no token resolver configured")}
		}
		if req.Owner == "" || req.Amount == 0 {
			return adminResp{Err: errors.New("grant needs an account and a non-zero amount")}
		}
		p := s.cfg.TokenResolver(req.Token)
		if p == nil {
			return adminResp{Err: errors.New("unknown token " + req.Token)}
		}
		p.Mint(req.Owner, req.Amount)
		return adminResp{}
	}
	return adminResp{Err: errors.New("unknown admin request")}
}

// Do submits one operation and waits for its result.
func (s *Service) Do(ctx context.Context, caller string, op protocol.OpMsg) (protocol.ResultMsg, error) {
	resp := make(chan protocol.ResultMsg, 1)
	select {
	case s.ops <- opReq{Caller: caller, Op: op, Resp: resp}:
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
	select {
	case res := <-resp:
		return res, nil
	case <-ctx.Done():
		return protocol.ResultMsg{}, ctx.Err()
	}
}

func (s *Service) doAdmin(ctx context.Context, req adminReq) (adminResp, error) {
	resp := make(chan adminResp, 1)
	req.Resp = resp
	select {
	case s.admin <- req:
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return adminResp{}, ctx.Err()
	}
}

// RequestMint creates a new identity for owner.
func (s *Service) RequestMint(ctx context.Context, owner string) (IdentityID, error) {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminMint, Owner: owner})
	if err != nil {
		return 0, err
	}
	return r.ID, r.Err
}

// RequestBurn destroys an identity on behalf of its controlling account.
func (s *Service) RequestBurn(ctx context.Context, caller string, id IdentityID) error {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminBurn, Caller: caller, ID: id})
	if err != nil {
		return err
	}
	return r.Err
}

// RequestSetUpgradeCost updates the per-upgrade fee.
func (s *Service) RequestSetUpgradeCost(ctx context.Context, cost uint64) error {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminSetCost, Cost: cost})
	if err != nil {
		return err
	}
	return r.Err
}

// RequestSetPaymentToken points upgrades at a different fee token.
func (s *Service) RequestSetPaymentToken(ctx context.Context, token string) error {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminSetToken, Token: token})
	if err != nil {
		return err
	}
	return r.Err
}

// RequestGrantItem mints items into account's free vault balance. Granted
// items are journaled, so they survive restart and replay.
func (s *Service) RequestGrantItem(ctx context.Context, account, itemType string, amount uint64) error {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminGrantItem, Owner: account, ItemType: itemType, Amount: amount})
	if err != nil {
		return err
	}
	return r.Err
}

// RequestGrantToken mints fee-token balance for account. Token balances are
// operational state, re-granted rather than replayed.
func (s *Service) RequestGrantToken(ctx context.Context, account, token string, amount uint64) error {
	r, err := s.doAdmin(ctx, adminReq{Kind: adminGrantToken, Owner: account, Token: token, Amount: amount})
	if err != nil {
		return err
	}
	return r.Err
}

// RequestSnapshot forces a snapshot onto the sink and returns the event
// sequence it covers.
func (s *Service) RequestSnapshot(ctx context.Context) (uint64, error) {
	resp := make(chan snapResp, 1)
	select {
	case s.snapReqs <- snapReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		return r.Seq, r.Err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Subscribe registers an event listener. The returned cancel func must be
// called when the listener goes away.
func (s *Service) Subscribe(ctx context.Context, buf int) (<-chan Event, func(), error) {
	resp := make(chan subResp, 1)
	select {
	case s.subscribe <- subReq{Buf: buf, Resp: resp}:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	select {
	case r := <-resp:
		cancel := func() {
			select {
			case s.unsub <- r.ID:
			default:
			}
		}
		return r.Ch, cancel, nil
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// ServiceMetrics is a point-in-time operational snapshot for /metrics.
type ServiceMetrics struct {
	Seq         uint64 `json:"seq"`
	Identities  int64  `json:"identities"`
	OpsTotal    uint64 `json:"ops_total"`
	FailedTotal uint64 `json:"failed_total"`
	QueueDepth  int    `json:"queue_depth"`
}

func (s *Service) Metrics() ServiceMetrics {
	return ServiceMetrics{
		Seq:         s.lastSeq.Load(),
		Identities:  s.identities.Load(),
		OpsTotal:    s.opsTotal.Load(),
		FailedTotal: s.failedTotal.Load(),
		QueueDepth:  len(s.ops),
	}
}
