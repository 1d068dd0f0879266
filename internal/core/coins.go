package core

// Coins is the ledger's value object: an amount paid to a receiver
// address. Coins are immutable once created — callers never mutate a
// Coins value in place, they replace it.
type Coins struct {
	Amount   uint64
	Receiver Address
}

// OutputIndex addresses one output within a transaction's output list.
type OutputIndex = uint32

// TxInput references a previously created, unspent output and carries the
// claim proof (signature) that authorizes spending it.
type TxInput struct {
	RefTxHash   [32]byte
	OutputIndex OutputIndex
	ClaimProof  []byte
}

// TxOutput is a newly minted output; in this model it is exactly a Coins
// value, kept as a distinct name for readability at call sites.
type TxOutput = Coins
