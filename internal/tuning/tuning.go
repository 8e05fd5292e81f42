package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	// Economy.
	PaymentToken     string `yaml:"payment_token"`
	UpgradeCost      uint64 `yaml:"upgrade_cost"`
	DefaultAttribute uint64 `yaml:"default_attribute"`

	// Accounts.
	CustodyAccount  string `yaml:"custody_account"`
	TreasuryAccount string `yaml:"treasury_account"`

	// Operational.
	SnapshotEveryOps uint64 `yaml:"snapshot_every_ops"`
	OpQueueSize      int    `yaml:"op_queue_size"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("economy.yaml: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func Defaults() Tuning {
	var t Tuning
	t.applyDefaults()
	return t
}

func (t *Tuning) applyDefaults() {
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = "1.0"
	}
	if t.DefaultAttribute == 0 {
		t.DefaultAttribute = 1
	}
	if t.CustodyAccount == "" {
		t.CustodyAccount = "sys:custody"
	}
	if t.TreasuryAccount == "" {
		t.TreasuryAccount = "sys:treasury"
	}
	if t.SnapshotEveryOps == 0 {
		t.SnapshotEveryOps = 512
	}
	if t.OpQueueSize <= 0 {
		t.OpQueueSize = 1024
	}
}

// Digest is the canonical-JSON digest of the effective tuning, surfaced in
// WELCOME so clients can detect config drift.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
