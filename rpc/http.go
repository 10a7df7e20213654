package rpc

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"workledger/core"
	"workledger/observability"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeUnauthorized   = -32001
)

// Domain error codes, one per stable error kind so callers can discriminate
// causes programmatically.
const (
	codeInvalidParams     = -32021
	codeNotFound          = -32022
	codeForbidden         = -32023
	codeConflict          = -32024
	codeInternal          = -32025
	codeInsufficientFunds = -32026
	codeReleaseWindow     = -32027
)

// Server exposes the node's operations over JSON-RPC 2.0. Mutating methods
// require the bearer token from WORKLEDGER_RPC_TOKEN; queries are open.
type Server struct {
	node      *core.Node
	authToken string
	metrics   *observability.LedgerMetrics
}

func NewServer(node *core.Node) *Server {
	token := strings.TrimSpace(os.Getenv("WORKLEDGER_RPC_TOKEN"))
	return &Server{
		node:      node,
		authToken: token,
		metrics:   observability.Metrics(),
	}
}

func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	return http.ListenAndServe(addr, mux)
}

// Handler returns the HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type handlerFunc func(http.ResponseWriter, *http.Request, *RPCRequest)

type methodEntry struct {
	handler  handlerFunc
	mutating bool
}

func (s *Server) methods() map[string]methodEntry {
	return map[string]methodEntry{
		"escrow_create":       {s.handleEscrowCreate, true},
		"escrow_fund":         {s.handleEscrowFund, true},
		"escrow_lock":         {s.handleEscrowLock, true},
		"escrow_confirm":      {s.handleEscrowConfirm, true},
		"escrow_raiseDispute": {s.handleEscrowRaiseDispute, true},
		"escrow_resolve":      {s.handleEscrowResolve, true},
		"escrow_autoRelease":  {s.handleEscrowAutoRelease, true},
		"escrow_get":          {s.handleEscrowGet, false},
		"escrow_count":        {s.handleEscrowCount, false},
		"escrow_feeBps":       {s.handleEscrowFeeBps, false},
		"jobs_create":         {s.handleJobCreate, true},
		"jobs_get":            {s.handleJobGet, false},
		"jobs_setStatus":      {s.handleJobSetStatus, true},
		"reputation_rate":     {s.handleReputationRate, true},
		"reputation_score":    {s.handleReputationScore, false},
		"ledger_balance":      {s.handleLedgerBalance, false},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "empty request body", nil)
		return
	}

	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported JSON-RPC version", nil)
		return
	}

	entry, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method), nil)
		return
	}
	if entry.mutating {
		if authErr := s.requireAuth(r); authErr != nil {
			s.metrics.Observe(req.Method, "unauthorized", 0)
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}
	start := time.Now()
	entry.handler(w, r, &req)
	s.metrics.Observe(req.Method, "handled", time.Since(start).Seconds())
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

// decodeSingleParam enforces the one-object parameter convention shared by
// every method.
func decodeSingleParam(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}
