package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"go.uber.org/multierr"

	"github.com/concilium/ledgercore/internal/app"
	"github.com/concilium/ledgercore/internal/contract"
	"github.com/concilium/ledgercore/internal/core"
	"github.com/concilium/ledgercore/internal/ledgerstate"
)

// coinsJSON is the on-the-wire shape of a Coins value: a hex-encoded
// address rather than core.Address's raw bytes.
type coinsJSON struct {
	Amount   uint64 `json:"amount"`
	Receiver string `json:"receiver"`
}

type utxoJSON struct {
	Outputs map[string]coinsJSON `json:"outputs"`
	Spent   []uint32             `json:"spent"`
}

type txInputJSON struct {
	RefTxHash   string `json:"ref_tx_hash"`
	OutputIndex uint32 `json:"output_index"`
	ClaimProof  string `json:"claim_proof"`
}

type transactionJSON struct {
	Inputs          []txInputJSON `json:"inputs"`
	Outputs         []coinsJSON   `json:"outputs"`
	TxCode          string        `json:"tx_code"`
	TxInvoke        string        `json:"tx_invoke"`
	ContractAddress string        `json:"contract_address"`
	WitnessGroupID  string        `json:"witness_group_id"`
}

// blockJSON is the file format conciliumd apply-block reads: a UTXO
// snapshot to stage the block against, plus the ordered transactions to
// run through it.
type blockJSON struct {
	Height       uint64              `json:"height"`
	UTXOs        map[string]utxoJSON `json:"utxos"`
	Transactions []transactionJSON   `json:"transactions"`
}

func loadBlock(path string) (*blockJSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read block file: %w", err)
	}
	var b blockJSON
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode block file: %w", err)
	}
	return &b, nil
}

func decodeHash(s string) ([32]byte, error) {
	var h [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash %q: %w", s, err)
	}
	if len(raw) != 32 {
		return h, fmt.Errorf("hash %q: expected 32 bytes, got %d", s, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func decodeAddress(s string) (core.Address, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return core.Address{}, fmt.Errorf("decode address %q: %w", s, err)
	}
	return core.AddressFromBytes(raw)
}

func decodeCoins(c coinsJSON) (core.Coins, error) {
	addr, err := decodeAddress(c.Receiver)
	if err != nil {
		return core.Coins{}, err
	}
	return core.Coins{Amount: c.Amount, Receiver: addr}, nil
}

// buildSnapshot decodes the block file's utxos section into a Snapshot
// the block's transactions are staged against.
func buildSnapshot(b *blockJSON) (*ledgerstate.Snapshot, error) {
	snap := ledgerstate.NewSnapshot()
	for hashHex, u := range b.UTXOs {
		txHash, err := decodeHash(hashHex)
		if err != nil {
			return nil, err
		}
		outputs := make(map[core.OutputIndex]core.Coins, len(u.Outputs))
		for idxStr, c := range u.Outputs {
			idx, err := strconv.ParseUint(idxStr, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("utxo %s: bad output index %q: %w", hashHex, idxStr, err)
			}
			coins, err := decodeCoins(c)
			if err != nil {
				return nil, fmt.Errorf("utxo %s: %w", hashHex, err)
			}
			outputs[core.OutputIndex(idx)] = coins
		}
		record := core.NewUTXO(txHash, outputs)
		for _, idx := range u.Spent {
			record.MarkSpentDirect(idx)
		}
		snap.UTXOs[txHash] = record
	}
	return snap, nil
}

func buildTransaction(t transactionJSON) (*core.Transaction, error) {
	inputs := make([]core.TxInput, len(t.Inputs))
	for i, in := range t.Inputs {
		refHash, err := decodeHash(in.RefTxHash)
		if err != nil {
			return nil, err
		}
		proof, err := hex.DecodeString(in.ClaimProof)
		if err != nil {
			return nil, fmt.Errorf("decode claim proof: %w", err)
		}
		inputs[i] = core.TxInput{RefTxHash: refHash, OutputIndex: in.OutputIndex, ClaimProof: proof}
	}

	outputs := make([]core.TxOutput, len(t.Outputs))
	for i, o := range t.Outputs {
		coins, err := decodeCoins(o)
		if err != nil {
			return nil, err
		}
		outputs[i] = coins
	}

	return &core.Transaction{
		Inputs:         inputs,
		Outputs:        outputs,
		TxCode:         t.TxCode,
		TxInvoke:       t.TxInvoke,
		WitnessGroupID: t.WitnessGroupID,
	}, nil
}

// receiptReport is the JSON shape printed for each processed transaction.
type receiptReport struct {
	TxHash          string   `json:"tx_hash"`
	Status          string   `json:"status"`
	GasUsed         uint64   `json:"gas_used"`
	ContractAddress string   `json:"contract_address,omitempty"`
	InternalTxns    []string `json:"internal_txns,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func reportFromReceipt(txHash [32]byte, r *core.Receipt) receiptReport {
	rep := receiptReport{
		TxHash:  hex.EncodeToString(txHash[:]),
		Status:  string(r.Status),
		GasUsed: r.GasUsed,
		Error:   r.Error,
	}
	if r.ContractAddress != nil {
		rep.ContractAddress = r.ContractAddress.String()
	}
	for _, t := range r.InternalTxns {
		rep.InternalTxns = append(rep.InternalTxns, hex.EncodeToString(t[:]))
	}
	return rep
}

// runBlock processes every transaction in b against a single shared
// Patch, best-effort: one transaction's failure does not stop the rest
// from being attempted, matching a mempool that simply drops the bad
// transaction and moves on. Every per-transaction error is aggregated
// via multierr and returned alongside the reports gathered so far.
func runBlock(a *app.Application, b *blockJSON, budget uint64) ([]receiptReport, *ledgerstate.Patch, error) {
	snap, err := buildSnapshot(b)
	if err != nil {
		return nil, nil, err
	}
	patch := ledgerstate.NewPatch(snap, b.Height, nil)

	var reports []receiptReport
	var errs error
	for _, txj := range b.Transactions {
		tx, err := buildTransaction(txj)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}

		if _, _, err := a.ProcessTxInputs(tx, snap, patch); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tx %x: %w", tx.Hash(), err))
			continue
		}
		if _, err := a.ProcessPayments(tx, patch); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tx %x: %w", tx.Hash(), err))
			continue
		}

		env := app.Environment{ContractTx: tx.Hash(), GroupID: tx.WitnessGroupID}
		switch {
		case tx.TxCode != "":
			receipt, _, err := a.CreateContract(budget, tx.TxCode, env, patch)
			if receipt != nil {
				reports = append(reports, reportFromReceipt(tx.Hash(), receipt))
			}
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("tx %x: %w", tx.Hash(), err))
			}
		case tx.TxInvoke != "":
			addr, err := decodeAddress(txj.ContractAddress)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("tx %x: %w", tx.Hash(), err))
				continue
			}
			rec, ok := patch.GetContract(addr)
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("tx %x: no contract at %s", tx.Hash(), addr.String()))
				continue
			}
			c := &contract.Contract{Address: addr, Code: rec.Code, Data: rec.Data, GroupID: rec.GroupID}
			receipt, err := a.RunContract(budget, tx.TxInvoke, c, env, patch)
			if receipt != nil {
				reports = append(reports, reportFromReceipt(tx.Hash(), receipt))
			}
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("tx %x: %w", tx.Hash(), err))
			}
		}
	}

	return reports, patch, errs
}
