package main

import (
	"flag"
	"fmt"
	"os"

	"relickeep.gg/internal/assets"
	"relickeep.gg/internal/ledger"
	"relickeep.gg/internal/persistence/journal"
	"relickeep.gg/internal/persistence/snapshot"
)

// Offline verifier: rebuilds ledger state from a snapshot plus the event
// journal and checks the custody invariant and state digest.
func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst to start from (optional)")
		keepDir  = flag.String("keep_dir", "", "keep data dir containing events/ (optional)")
		toSeq    = flag.Uint64("to_seq", 0, "stop after this event sequence (0 = all)")
		digest   = flag.String("expect_digest", "", "fail unless the final state digest matches")
	)
	flag.Parse()

	if *snapPath == "" && *keepDir == "" {
		fmt.Fprintln(os.Stderr, "need -snapshot and/or -keep_dir")
		os.Exit(2)
	}

	l := ledger.New(ledger.Config{
		CustodyAccount:   "sys:custody",
		TreasuryAccount:  "sys:treasury",
		DefaultAttribute: 1,
	}, assets.NewVault("sys:custody"))

	var fromSeq uint64
	if *snapPath != "" {
		snap, err := snapshot.ReadSnapshot(*snapPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "read snapshot:", err)
			os.Exit(1)
		}
		if err := l.ImportSnapshot(snap); err != nil {
			fmt.Fprintln(os.Stderr, "import snapshot:", err)
			os.Exit(1)
		}
		fromSeq = snap.Header.Seq
		fmt.Printf("snapshot v%d keep=%s seq=%d identities=%d digest=%s\n",
			snap.Header.Version, snap.Header.KeepID, snap.Header.Seq, len(snap.Identities), snap.Digest)
	}

	var applied uint64
	if *keepDir != "" {
		err := journal.ReadAll(*keepDir, fromSeq, func(ev ledger.Event) error {
			if *toSeq != 0 && ev.Seq > *toSeq {
				return nil
			}
			if err := l.ApplyEvent(ev); err != nil {
				return fmt.Errorf("seq %d op %s: %w", ev.Seq, ev.Op, err)
			}
			applied++
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}

	if err := l.CheckCustody(); err != nil {
		fmt.Fprintln(os.Stderr, "custody invariant:", err)
		os.Exit(1)
	}

	got := l.StateDigest()
	if *digest != "" && got != *digest {
		fmt.Fprintf(os.Stderr, "digest mismatch: have %s, want %s\n", got, *digest)
		os.Exit(1)
	}

	token, cost := l.PaymentConfigured()
	fmt.Printf("replay ok: applied=%d events seq=%d identities=%d token=%q cost=%d digest=%s\n",
		applied, l.Seq(), l.IdentityCount(), token, cost, got)
}
