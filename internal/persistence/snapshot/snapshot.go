package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version int    `json:"version"`
	KeepID  string `json:"keep_id"`
	Seq     uint64 `json:"seq"`
}

// StateV1 is a full export of ledger state at one event sequence number.
type StateV1 struct {
	Header Header `json:"header"`

	// Effective upgrade configuration at snapshot time.
	PaymentToken string `json:"payment_token,omitempty"`
	UpgradeCost  uint64 `json:"upgrade_cost,omitempty"`

	Identities []IdentityV1 `json:"identities"`

	// Backing vault balances at snapshot time, custody account included.
	// Restored wholesale on import so journal-tail replay resumes from the
	// same physical state the records describe.
	Vault []VaultBalanceV1 `json:"vault,omitempty"`

	NextIdentity uint64 `json:"next_identity"`
	Digest       string `json:"digest"`
}

type VaultBalanceV1 struct {
	Account  string `json:"account"`
	ItemType string `json:"item_type"`
	Amount   uint64 `json:"amount"`
}

type IdentityV1 struct {
	ID         uint64            `json:"id"`
	Owner      string            `json:"owner"`
	Attributes map[string]uint64 `json:"attributes"`
	Slots      []SlotV1          `json:"slots,omitempty"`
}

type SlotV1 struct {
	Slot     string `json:"slot"`
	ItemType string `json:"item_type"`
	Amount   uint64 `json:"amount"`
}

func WriteSnapshot(path string, snap StateV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (StateV1, error) {
	var snap StateV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is advisory; gob carries the header too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}
