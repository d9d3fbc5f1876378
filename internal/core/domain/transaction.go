package domain

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

type Operation string

const (
	OperationCreate   Operation = "CREATE"
	OperationTransfer Operation = "TRANSFER"
)

// Status is the lifecycle tag carried as transaction metadata. The ledger
// does not validate it; only the latest transaction of a chain carries the
// asset's current status.
type Status string

const (
	StatusUnavailable Status = "unavailable"
	StatusAvailable   Status = "available"
	StatusPending     Status = "pending"
)

// Next reports whether the custody state machine allows moving from s to
// next. The graph is unavailable -> available -> pending -> unavailable;
// there is no reject path back from pending to available.
func (s Status) Next(next Status) bool {
	switch next {
	case StatusAvailable:
		return s == StatusUnavailable
	case StatusPending:
		return s == StatusAvailable
	case StatusUnavailable:
		return s == StatusPending
	default:
		return false
	}
}

// Asset is the immutable payload fixed at creation. On a CREATE transaction
// Type and Item are set and ID is empty; on a TRANSFER only ID is set,
// referencing the originating CREATE transaction.
type Asset struct {
	ID   string          `json:"id,omitempty"`
	Type string          `json:"type,omitempty"`
	Item json.RawMessage `json:"item,omitempty"`
}

// Metadata travels with every transaction. Seed is the capability token the
// offer step records so that reserve and confirm can re-derive the acting
// owner's signing key. See DESIGN.md for the trust trade-off.
type Metadata struct {
	Status Status    `json:"status"`
	Seed   string    `json:"seed,omitempty"`
	Date   time.Time `json:"date"`
}

// Input references the unspent output consumed by a TRANSFER. CREATE
// transactions carry no inputs.
type Input struct {
	TxID        string `json:"transaction_id"`
	OutputIndex int    `json:"output_index"`
}

// Output binds spendability to a public key. The single-owner model produces
// exactly one output per transaction.
type Output struct {
	PublicKey string `json:"public_key"`
}

// Transaction is one link of an asset's custody chain. ID is the hex sha256
// of the canonical encoding; Signature is the base58 ed25519 signature over
// the same bytes, produced by the key owning the consumed output.
type Transaction struct {
	ID        string    `json:"id,omitempty"`
	Operation Operation `json:"operation"`
	Asset     Asset     `json:"asset"`
	Metadata  Metadata  `json:"metadata"`
	Inputs    []Input   `json:"inputs,omitempty"`
	Outputs   []Output  `json:"outputs"`
	Signature string    `json:"signature,omitempty"`
}

// AssetID resolves the id of the chain this transaction belongs to: its own
// id for a CREATE, the referenced asset id for a TRANSFER.
func (t *Transaction) AssetID() string {
	if t.Operation == OperationCreate {
		return t.ID
	}
	return t.Asset.ID
}

// Canonical returns the deterministic encoding the id and signature are
// computed over: the JSON serialization with id and signature blanked.
func (t *Transaction) Canonical() ([]byte, error) {
	clone := *t
	clone.ID = ""
	clone.Signature = ""
	buf, err := json.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}
	return buf, nil
}

// ComputeID hashes the canonical encoding.
func (t *Transaction) ComputeID() (string, error) {
	buf, err := t.Canonical()
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(buf)
	return hex.EncodeToString(digest[:]), nil
}

// Verify checks the transaction signature against the given base58 public
// key, which must be the one bound to the consumed output (or the creator's
// own key for a CREATE).
func (t *Transaction) Verify(publicKey string) error {
	pk, err := DecodePublicKey(publicKey)
	if err != nil {
		return err
	}
	sig, err := base58.Decode(t.Signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	buf, err := t.Canonical()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pk, buf, sig) {
		return fmt.Errorf("signature verification failed for tx %s", t.ID)
	}
	return nil
}
