package app

import (
	"encoding/binary"
	"encoding/json"
	"regexp"
	"strings"

	"lukechampine.com/blake3"

	"github.com/concilium/ledgercore/internal/vm"
)

var invocationPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\((.*)\)$`)

// parseInvocation splits an invocation string of the form
// "methodName(args...)" into the bare method name and its
// comma-separated argument expressions, passed through unevaluated for
// the sandbox's own JS parser to interpret. An empty invocation
// returns an empty method name, which SynthesizeInvocation resolves to
// the default dispatch method.
func parseInvocation(invocation string) (string, []string) {
	invocation = strings.TrimSpace(invocation)
	if invocation == "" {
		return "", nil
	}
	m := invocationPattern.FindStringSubmatch(invocation)
	if m == nil {
		return invocation, nil
	}
	method := m[1]
	argsPart := strings.TrimSpace(m[2])
	if argsPart == "" {
		return method, nil
	}
	parts := strings.Split(argsPart, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return method, parts
}

// extractDataJSON pulls the "data" field back out of a sandbox run's
// {"result": ..., "data": {...}} JSON envelope.
func extractDataJSON(resultJSON string) string {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal([]byte(resultJSON), &envelope); err != nil || envelope.Data == nil {
		return "{}"
	}
	return string(envelope.Data)
}

// internalTxnHash derives a stable identifier for a contract-issued
// internal transfer. These never go through claim verification, so
// they have no signature-bearing Transaction of their own; this hash
// exists purely so a Receipt can name them distinctly.
func internalTxnHash(contractTx [32]byte, index int, t vm.InternalTransferRecord) [32]byte {
	h := blake3.New(32, nil)
	h.Write(contractTx[:])
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], uint64(index))
	h.Write(idxBuf[:])
	h.Write(t.To[:])
	var amtBuf [8]byte
	binary.BigEndian.PutUint64(amtBuf[:], t.Amount)
	h.Write(amtBuf[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
