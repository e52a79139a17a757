// Package model defines the domain types shared across the application.
package model

import (
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"fmt"
)

// TxType identifies the ledger-level kind of a transaction.
type TxType string

const (
	// TxTypePayment moves the network's native asset.
	TxTypePayment TxType = "pay"
	// TxTypeAssetTransfer moves (or opts in to) a standard asset.
	TxTypeAssetTransfer TxType = "axfer"
)

// SuggestedParams is a short-lived snapshot of network parameters required
// to build a valid transaction. It must be fetched fresh for every build;
// the validity window expires after a handful of rounds.
type SuggestedParams struct {
	GenesisID   string
	GenesisHash string
	Fee         uint64
	MinFee      uint64
	FirstValid  uint64
	LastValid   uint64
}

// UnsignedTransaction represents a single ledger operation ready for
// grouping and signing. Instances are value types; once handed to a
// TransactionGroup they must not be mutated.
type UnsignedTransaction struct {
	Type     TxType
	Sender   string
	Receiver string
	Note     string
	Params   SuggestedParams
	Amount   uint64
	AssetID  uint64 // zero for native-asset payments
}

// IsOptIn reports whether the transaction is a zero-amount self-transfer,
// the ledger idiom for registering the ability to hold an asset.
func (t *UnsignedTransaction) IsOptIn() bool {
	return t.Type == TxTypeAssetTransfer &&
		t.Amount == 0 &&
		t.AssetID != 0 &&
		t.Sender == t.Receiver
}

// encodeForGroup produces the canonical byte encoding used for group-id
// computation. Field order is fixed; any change to it changes every group
// id ever computed, so treat it as frozen.
func (t *UnsignedTransaction) encodeForGroup() []byte {
	buf := make([]byte, 0, 128)

	appendString := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		buf = append(buf, n[:]...)
		buf = append(buf, s...)
	}
	appendUint64 := func(v uint64) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], v)
		buf = append(buf, n[:]...)
	}

	appendString(string(t.Type))
	appendString(t.Sender)
	appendString(t.Receiver)
	appendUint64(t.Amount)
	appendUint64(t.AssetID)
	appendUint64(t.Params.Fee)
	appendUint64(t.Params.FirstValid)
	appendUint64(t.Params.LastValid)
	appendString(t.Params.GenesisID)
	appendString(t.Params.GenesisHash)
	appendString(t.Note)

	return buf
}

// MaxGroupSize is the ledger's limit on atomic group membership.
const MaxGroupSize = 16

// groupDomainPrefix separates group-id hashes from every other hash domain.
const groupDomainPrefix = "TG"

// TransactionGroup is an ordered set of transactions that the ledger
// commits or rejects as a unit. The group id is computed once at
// construction over the exact member sequence; the group is sealed
// afterwards.
type TransactionGroup struct {
	ID   string
	Txns []UnsignedTransaction
}

// NewGroup computes the atomic group id over the given transactions, in
// the given order, and returns the sealed group. The id is a pure function
// of the ordered member encodings: the same logical group always hashes to
// the same id, and reordering members yields a different id.
func NewGroup(txns []UnsignedTransaction) (*TransactionGroup, error) {
	if len(txns) < 2 {
		return nil, fmt.Errorf("atomic group requires at least 2 transactions, got %d", len(txns))
	}
	if len(txns) > MaxGroupSize {
		return nil, fmt.Errorf("atomic group limited to %d transactions, got %d", MaxGroupSize, len(txns))
	}

	members := make([]UnsignedTransaction, len(txns))
	copy(members, txns)

	return &TransactionGroup{
		ID:   computeGroupID(members),
		Txns: members,
	}, nil
}

// Single wraps one transaction for signing without assigning a group id;
// a lone transaction settles on its own.
func Single(txn UnsignedTransaction) *TransactionGroup {
	return &TransactionGroup{Txns: []UnsignedTransaction{txn}}
}

// Verify recomputes the group id over the current members and reports
// whether it still matches the id assigned at construction. Mutating any
// member field or reordering members after grouping makes this fail.
// Ungrouped singles always verify.
func (g *TransactionGroup) Verify() bool {
	if g.ID == "" {
		return len(g.Txns) == 1
	}
	return computeGroupID(g.Txns) == g.ID
}

// Grouped reports whether an atomic group id has been assigned.
func (g *TransactionGroup) Grouped() bool {
	return g.ID != ""
}

func computeGroupID(txns []UnsignedTransaction) string {
	h := sha512.New512_256()
	h.Write([]byte(groupDomainPrefix))
	for i := range txns {
		h.Write(txns[i].encodeForGroup())
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(h.Sum(nil))
}

// SignedPayload is the opaque signed representation of one transaction
// group, correlated to it by group id. It is produced once and submitted
// once unless the caller explicitly resubmits.
type SignedPayload struct {
	GroupID string
	Blob    []byte
}
