// Package ledgertest runs an in-process Solana JSON-RPC node that executes
// the list program, so ledger clients can be tested end to end.
package ledgertest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/gotuzzoj23/SolanaDApp/internal/ledger"
)

// Status reported for accepted transactions unless overridden.
const DefaultStatus = "finalized"

type request struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type txStatus struct {
	status string
	err    interface{}
}

// Node is a fake RPC node. The zero value is not usable; call New.
type Node struct {
	Schema ledger.Schema

	server *httptest.Server

	mu        sync.Mutex
	accounts  map[solana.PublicKey]ledger.Account
	statuses  map[solana.Signature]txStatus
	calls     map[string]int
	failures  map[string]*rpcError
	status    string
	blockhash solana.Hash
}

// New starts a node serving schema and stops it when the test ends.
func New(t testing.TB, schema ledger.Schema) *Node {
	t.Helper()

	n := &Node{
		Schema:    schema,
		accounts:  make(map[solana.PublicKey]ledger.Account),
		statuses:  make(map[solana.Signature]txStatus),
		calls:     make(map[string]int),
		failures:  make(map[string]*rpcError),
		status:    DefaultStatus,
		blockhash: solana.HashFromBytes([]byte("ledgertest-blockhash-0000000000!")),
	}
	n.server = httptest.NewServer(http.HandlerFunc(n.serveHTTP))
	t.Cleanup(n.server.Close)
	return n
}

// URL returns the RPC endpoint
func (n *Node) URL() string {
	return n.server.URL
}

// Calls returns how many times method was invoked.
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// TotalCalls returns the number of RPC requests served.
func (n *Node) TotalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		total += c
	}
	return total
}

// Fail makes every call to method return an RPC error until Recover is
// called.
func (n *Node) Fail(method, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[method] = &rpcError{Code: -32603, Message: message}
}

// Recover clears an injected failure.
func (n *Node) Recover(method string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.failures, method)
}

// SetStatus sets the confirmation status reported for new transactions.
// An empty status leaves them unconfirmed.
func (n *Node) SetStatus(status string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = status
}

// SeedAccount stores acct at pk as if created on chain.
func (n *Node) SeedAccount(pk solana.PublicKey, acct ledger.Account) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[pk] = acct
}

// Account returns the stored account at pk.
func (n *Node) Account(pk solana.PublicKey) (ledger.Account, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	acct, ok := n.accounts[pk]
	return acct, ok
}

func (n *Node) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	injected := n.failures[req.Method]
	n.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID}
	if injected != nil {
		resp.Error = injected
	} else {
		resp.Result, resp.Error = n.dispatch(req)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (n *Node) dispatch(req request) (interface{}, *rpcError) {
	switch req.Method {
	case "getAccountInfo":
		return n.getAccountInfo(req.Params)
	case "getLatestBlockhash":
		return map[string]interface{}{
			"context": map[string]interface{}{"slot": 1},
			"value": map[string]interface{}{
				"blockhash":            n.blockhash.String(),
				"lastValidBlockHeight": 1000,
			},
		}, nil
	case "sendTransaction":
		return n.sendTransaction(req.Params)
	case "getSignatureStatuses":
		return n.getSignatureStatuses(req.Params)
	}
	return nil, &rpcError{Code: -32601, Message: "Method not found"}
}

func (n *Node) getAccountInfo(params []json.RawMessage) (interface{}, *rpcError) {
	pk, rerr := pubkeyParam(params)
	if rerr != nil {
		return nil, rerr
	}

	ctx := map[string]interface{}{"slot": 1}

	n.mu.Lock()
	acct, ok := n.accounts[pk]
	n.mu.Unlock()
	if !ok {
		return map[string]interface{}{"context": ctx, "value": nil}, nil
	}

	data, err := n.Schema.EncodeAccount(acct)
	if err != nil {
		return nil, &rpcError{Code: -32603, Message: err.Error()}
	}
	return map[string]interface{}{
		"context": ctx,
		"value": map[string]interface{}{
			"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
			"executable": false,
			"lamports":   1000000,
			"owner":      n.Schema.ProgramID.String(),
			"rentEpoch":  0,
			"space":      len(data),
		},
	}, nil
}

func (n *Node) getSignatureStatuses(params []json.RawMessage) (interface{}, *rpcError) {
	if len(params) == 0 {
		return nil, &rpcError{Code: -32602, Message: "missing signatures"}
	}
	var sigs []string
	if err := json.Unmarshal(params[0], &sigs); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	values := make([]interface{}, len(sigs))
	for i, s := range sigs {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, &rpcError{Code: -32602, Message: err.Error()}
		}
		st, ok := n.statuses[sig]
		if !ok || st.status == "" {
			continue
		}
		values[i] = map[string]interface{}{
			"slot":               1,
			"confirmations":      nil,
			"err":                st.err,
			"confirmationStatus": st.status,
		}
	}
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": 1},
		"value":   values,
	}, nil
}

func (n *Node) sendTransaction(params []json.RawMessage) (interface{}, *rpcError) {
	if len(params) == 0 {
		return nil, &rpcError{Code: -32602, Message: "missing transaction"}
	}
	var encoded string
	if err := json.Unmarshal(params[0], &encoded); err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: err.Error()}
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, &rpcError{Code: -32602, Message: "failed to deserialize transaction: " + err.Error()}
	}
	if len(tx.Signatures) == 0 {
		return nil, &rpcError{Code: -32003, Message: "Transaction signature verification failure"}
	}
	if err := tx.VerifySignatures(); err != nil {
		return nil, &rpcError{Code: -32003, Message: "Transaction signature verification failure"}
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	for i, inst := range tx.Message.Instructions {
		if rerr := n.execute(tx, i, inst); rerr != nil {
			return nil, rerr
		}
	}

	sig := tx.Signatures[0]
	n.statuses[sig] = txStatus{status: n.status}
	return sig.String(), nil
}

func (n *Node) execute(tx *solana.Transaction, index int, inst solana.CompiledInstruction) *rpcError {
	keys := tx.Message.AccountKeys
	if int(inst.ProgramIDIndex) >= len(keys) {
		return simulationFailure(index, "invalid program index", nil)
	}
	if !keys[inst.ProgramIDIndex].Equals(n.Schema.ProgramID) {
		return simulationFailure(index, "incorrect program id for instruction", nil)
	}

	accounts := make([]solana.PublicKey, 0, len(inst.Accounts))
	for _, idx := range inst.Accounts {
		if int(idx) >= len(keys) {
			return simulationFailure(index, "invalid account index", nil)
		}
		accounts = append(accounts, keys[idx])
	}

	kind, content, err := n.Schema.DecodeInstruction(inst.Data)
	if err != nil {
		return simulationFailure(index, "invalid instruction data", []string{err.Error()})
	}

	switch kind {
	case ledger.InstructionCreateAccount:
		if len(accounts) < 3 {
			return simulationFailure(index, "not enough account keys given to the instruction", nil)
		}
		account, user := accounts[0], accounts[1]
		if !isSigner(tx, account) || !isSigner(tx, user) {
			return simulationFailure(index, "missing required signature for instruction", nil)
		}
		if _, exists := n.accounts[account]; exists {
			return simulationFailure(index, "custom program error: 0x0", []string{
				fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", account),
			})
		}
		n.accounts[account] = ledger.Account{OwnerAuthority: user, Entries: []ledger.Entry{}}
	case ledger.InstructionAppendEntry:
		if len(accounts) < 2 {
			return simulationFailure(index, "not enough account keys given to the instruction", nil)
		}
		account, user := accounts[0], accounts[1]
		if !isSigner(tx, user) {
			return simulationFailure(index, "missing required signature for instruction", nil)
		}
		acct, exists := n.accounts[account]
		if !exists {
			return simulationFailure(index, "custom program error: 0xbc4", []string{
				"AnchorError caused by account: base_account. Error Code: AccountNotInitialized.",
			})
		}
		acct.Entries = append(append([]ledger.Entry{}, acct.Entries...), ledger.Entry{Content: content, Submitter: user})
		n.accounts[account] = acct
	default:
		return simulationFailure(index, "custom program error: 0x65", []string{"InstructionFallbackNotFound"})
	}
	return nil
}

func isSigner(tx *solana.Transaction, pk solana.PublicKey) bool {
	required := int(tx.Message.Header.NumRequiredSignatures)
	for i, k := range tx.Message.AccountKeys {
		if i >= required {
			return false
		}
		if k.Equals(pk) {
			return true
		}
	}
	return false
}

func simulationFailure(index int, reason string, logs []string) *rpcError {
	if logs == nil {
		logs = []string{}
	}
	return &rpcError{
		Code:    -32002,
		Message: fmt.Sprintf("Transaction simulation failed: Error processing Instruction %d: %s", index, reason),
		Data: map[string]interface{}{
			"err":  reason,
			"logs": logs,
		},
	}
}

func pubkeyParam(params []json.RawMessage) (solana.PublicKey, *rpcError) {
	if len(params) == 0 {
		return solana.PublicKey{}, &rpcError{Code: -32602, Message: "missing pubkey"}
	}
	var s string
	if err := json.Unmarshal(params[0], &s); err != nil {
		return solana.PublicKey{}, &rpcError{Code: -32602, Message: err.Error()}
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, &rpcError{Code: -32602, Message: "Invalid param: " + err.Error()}
	}
	return pk, nil
}
