package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"relickeep.gg/internal/assets"
	"relickeep.gg/internal/ledger"
	"relickeep.gg/internal/persistence/indexdb"
	"relickeep.gg/internal/persistence/journal"
	"relickeep.gg/internal/persistence/snapshot"
	"relickeep.gg/internal/registry"
	"relickeep.gg/internal/transport/ws"
	"relickeep.gg/internal/tuning"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		keepID     = flag.String("keep", "keep_1", "keep id")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to economy.yaml (default: <configs>/economy.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (events + snapshot metadata + catalogs)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	catalog, err := registry.Load(*configDir)
	if err != nil {
		logger.Fatalf("load item catalog: %v", err)
	}

	keepDir := filepath.Join(*dataDir, "keeps", *keepID)
	_ = os.MkdirAll(keepDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "economy.yaml")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(keepDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		// Resume fallback: the snapshot carries the effective economy config.
		if os.IsNotExist(tuneErr) {
			logger.Printf("tuning not found (%s); using defaults", tp)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(keepDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index backend: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(*configDir, catalog, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	// In-process asset backends. The vault holds equipment custody; tokens
	// pay upgrade fees. Both treat the custody account as their operator.
	vault := assets.NewVault(tune.CustodyAccount)
	tokens := map[string]*assets.Token{}
	resolveToken := func(id string) ledger.Paymaster {
		if id == "" {
			return nil
		}
		tok, ok := tokens[id]
		if !ok {
			tok = assets.NewToken(id, tune.CustodyAccount)
			tokens[id] = tok
		}
		return tok
	}

	l := ledger.New(ledger.Config{
		CustodyAccount:   tune.CustodyAccount,
		TreasuryAccount:  tune.TreasuryAccount,
		DefaultAttribute: tune.DefaultAttribute,
	}, vault)
	if err := l.BindItemRegistry(catalog); err != nil {
		logger.Fatalf("bind item catalog: %v", err)
	}

	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		if snap.Header.KeepID != "" && snap.Header.KeepID != *keepID {
			logger.Fatalf("snapshot keep id mismatch: flag=%s snap=%s", *keepID, snap.Header.KeepID)
		}
		if err := l.ImportSnapshot(snap); err != nil {
			logger.Fatalf("import snapshot: %v", err)
		}
		// Catch up from the journal past the snapshot's sequence.
		if err := journal.ReadAll(keepDir, snap.Header.Seq, l.ApplyEvent); err != nil {
			logger.Fatalf("journal catch-up: %v", err)
		}
		logger.Printf("resumed from snapshot=%s seq=%d identities=%d",
			filepath.Base(snapshotToLoad), l.Seq(), l.IdentityCount())
	}

	svc := ledger.NewService(ledger.ServiceConfig{
		KeepID:           *keepID,
		QueueSize:        tune.OpQueueSize,
		SnapshotEveryOps: tune.SnapshotEveryOps,
		TokenResolver:    resolveToken,
	}, l)

	eventLog := journal.NewEventJournal(keepDir)
	defer eventLog.Close()
	svc.SetJournal(multiEventSink{a: eventLog, b: idx})

	// Rebind the live paymaster (snapshots and the journal carry only the
	// token id), then apply the economy config. Both commit events, after
	// the journal is attached, so replay reproduces the configuration.
	if token, _ := l.PaymentConfigured(); token != "" && tune.PaymentToken == "" {
		l.SetPaymentToken(resolveToken(token))
	}
	if tune.PaymentToken != "" {
		l.SetPaymentToken(resolveToken(tune.PaymentToken))
	}
	if tune.UpgradeCost > 0 {
		l.SetUpgradeCost(tune.UpgradeCost)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	snapCh := make(chan snapshot.StateV1, 2)
	svc.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(keepDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Seq))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
					continue
				}
				if idx != nil {
					idx.RecordSnapshot(path, snap)
				}
			}
		}
	}()

	go func() {
		if err := svc.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("ledger stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := svc.Metrics()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP relickeep_ledger_seq Last committed event sequence.\n")
		fmt.Fprintf(rw, "# TYPE relickeep_ledger_seq gauge\n")
		fmt.Fprintf(rw, "relickeep_ledger_seq{keep=%q} %d\n", *keepID, m.Seq)

		fmt.Fprintf(rw, "# HELP relickeep_ledger_identities Live identity count.\n")
		fmt.Fprintf(rw, "# TYPE relickeep_ledger_identities gauge\n")
		fmt.Fprintf(rw, "relickeep_ledger_identities{keep=%q} %d\n", *keepID, m.Identities)

		fmt.Fprintf(rw, "# HELP relickeep_ledger_ops_total Total operations processed.\n")
		fmt.Fprintf(rw, "# TYPE relickeep_ledger_ops_total counter\n")
		fmt.Fprintf(rw, "relickeep_ledger_ops_total{keep=%q} %d\n", *keepID, m.OpsTotal)

		fmt.Fprintf(rw, "# HELP relickeep_ledger_failed_total Total operations rejected.\n")
		fmt.Fprintf(rw, "# TYPE relickeep_ledger_failed_total counter\n")
		fmt.Fprintf(rw, "relickeep_ledger_failed_total{keep=%q} %d\n", *keepID, m.FailedTotal)

		fmt.Fprintf(rw, "# HELP relickeep_ledger_queue_depth Operation channel backlog depth.\n")
		fmt.Fprintf(rw, "# TYPE relickeep_ledger_queue_depth gauge\n")
		fmt.Fprintf(rw, "relickeep_ledger_queue_depth{keep=%q} %d\n", *keepID, m.QueueDepth)
	})

	enableAdminHTTP := envBool("RK_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("RK_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		registerAdminHandlers(mux, svc, *keepID, logger)
	} else {
		logger.Printf("admin endpoints disabled (RK_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (RK_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(svc, catalog, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func registerAdminHandlers(mux *http.ServeMux, svc *ledger.Service, keepID string, logger *log.Logger) {
	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			KeepID  string                `json:"keep_id"`
			Metrics ledger.ServiceMetrics `json:"metrics"`
		}{
			KeepID:  keepID,
			Metrics: svc.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})

	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		seq, err := svc.RequestSnapshot(ctx2)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "seq": seq, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "seq": seq})
	})

	mux.HandleFunc("/admin/v1/mint", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Owner string `json:"owner"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Owner) == "" {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		id, err := svc.RequestMint(ctx2, strings.TrimSpace(body.Owner))
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "identity": id})
	})

	mux.HandleFunc("/admin/v1/burn", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Caller   string `json:"caller"`
			Identity uint64 `json:"identity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Caller == "" || body.Identity == 0 {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		err := svc.RequestBurn(ctx2, body.Caller, ledger.IdentityID(body.Identity))
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/admin/v1/grant", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			Account  string `json:"account"`
			ItemType string `json:"item_type,omitempty"`
			Token    string `json:"token,omitempty"`
			Amount   uint64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		account := strings.TrimSpace(body.Account)
		if account == "" || body.Amount == 0 || (body.ItemType == "") == (body.Token == "") {
			http.Error(rw, "need account, amount, and exactly one of item_type or token", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		var err error
		if body.ItemType != "" {
			err = svc.RequestGrantItem(ctx2, account, body.ItemType, body.Amount)
		} else {
			err = svc.RequestGrantToken(ctx2, account, body.Token, body.Amount)
		}
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})

	mux.HandleFunc("/admin/v1/config", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var body struct {
			PaymentToken *string `json:"payment_token,omitempty"`
			UpgradeCost  *uint64 `json:"upgrade_cost,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel2()
		if body.PaymentToken != nil {
			if err := svc.RequestSetPaymentToken(ctx2, *body.PaymentToken); err != nil {
				rw.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
		}
		if body.UpgradeCost != nil {
			if err := svc.RequestSetUpgradeCost(ctx2, *body.UpgradeCost); err != nil {
				rw.WriteHeader(http.StatusUnprocessableEntity)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true})
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(keepDir string) string {
	dir := filepath.Join(keepDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestSeq uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		base := strings.TrimSuffix(name, ".snap.zst")
		seq, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			continue
		}
		if best == "" || seq > bestSeq {
			bestSeq = seq
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

type multiEventSink struct {
	a ledger.EventSink
	b *indexdb.SQLiteIndex
}

func (m multiEventSink) WriteEvent(ev ledger.Event) error {
	if m.a != nil {
		_ = m.a.WriteEvent(ev)
	}
	if m.b != nil {
		_ = m.b.WriteEvent(ev)
	}
	return nil
}
