package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "SALT6ZOHQU6NCIPLUXWCGSBPCVJEIFSB4IFDWTZ7E6XZABJ3IOWRFN6BSM"
	addrB = "LYDULBXKOFJZVF6GUS43ZEQXSL3DW7OPAFO5QPLLBZZMHQJVLHIDSDX7QU"
)

func paymentTxn(sender, receiver string, amount uint64) UnsignedTransaction {
	return UnsignedTransaction{
		Type:     TxTypePayment,
		Sender:   sender,
		Receiver: receiver,
		Amount:   amount,
		Params: SuggestedParams{
			GenesisID:  "testnet-v1.0",
			Fee:        1000,
			FirstValid: 1000,
			LastValid:  2000,
		},
	}
}

func TestIsOptIn(t *testing.T) {
	optIn := UnsignedTransaction{Type: TxTypeAssetTransfer, Sender: addrA, Receiver: addrA, AssetID: 42}
	assert.True(t, optIn.IsOptIn())

	// A real transfer is not an opt-in.
	transfer := optIn
	transfer.Amount = 5
	assert.False(t, transfer.IsOptIn())

	// Neither is a zero-amount transfer to someone else.
	elsewhere := optIn
	elsewhere.Receiver = addrB
	assert.False(t, elsewhere.IsOptIn())

	// Nor a native payment to self.
	payment := paymentTxn(addrA, addrA, 0)
	assert.False(t, payment.IsOptIn())
}

func TestNewGroup_SizeBounds(t *testing.T) {
	one := []UnsignedTransaction{paymentTxn(addrA, addrB, 1)}
	_, err := NewGroup(one)
	require.Error(t, err)

	many := make([]UnsignedTransaction, MaxGroupSize+1)
	for i := range many {
		many[i] = paymentTxn(addrA, addrB, uint64(i+1))
	}
	_, err = NewGroup(many)
	require.Error(t, err)

	group, err := NewGroup(many[:MaxGroupSize])
	require.NoError(t, err)
	assert.Len(t, group.Txns, MaxGroupSize)
}

func TestNewGroup_Deterministic(t *testing.T) {
	txns := []UnsignedTransaction{paymentTxn(addrA, addrB, 1), paymentTxn(addrB, addrA, 2)}

	g1, err := NewGroup(txns)
	require.NoError(t, err)
	g2, err := NewGroup(txns)
	require.NoError(t, err)

	assert.Equal(t, g1.ID, g2.ID)
	assert.True(t, g1.Grouped())
	assert.True(t, g1.Verify())

	// Reordering the members yields a different id.
	reversed, err := NewGroup([]UnsignedTransaction{txns[1], txns[0]})
	require.NoError(t, err)
	assert.NotEqual(t, g1.ID, reversed.ID)
}

func TestNewGroup_CopiesInput(t *testing.T) {
	txns := []UnsignedTransaction{paymentTxn(addrA, addrB, 1), paymentTxn(addrB, addrA, 2)}
	group, err := NewGroup(txns)
	require.NoError(t, err)

	// Mutating the caller's slice must not reach into the sealed group.
	txns[0].Amount = 999
	assert.True(t, group.Verify())
}

func TestVerify_DetectsMutation(t *testing.T) {
	group, err := NewGroup([]UnsignedTransaction{paymentTxn(addrA, addrB, 1), paymentTxn(addrB, addrA, 2)})
	require.NoError(t, err)

	group.Txns[1].Amount = 3
	assert.False(t, group.Verify())
}

func TestSingle(t *testing.T) {
	single := Single(paymentTxn(addrA, addrB, 1))

	assert.False(t, single.Grouped())
	assert.True(t, single.Verify())
}
