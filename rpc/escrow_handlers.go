package rpc

import (
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"workledger/crypto"
	"workledger/native/escrow"
)

type escrowCreateParams struct {
	JobID    uint64 `json:"jobId"`
	Employer string `json:"employer"`
	Worker   string `json:"worker,omitempty"`
	Amount   string `json:"amount"`
}

type escrowFundParams struct {
	ID    uint64 `json:"id"`
	From  string `json:"from"`
	Value string `json:"value"`
}

type escrowActorParams struct {
	ID     uint64 `json:"id"`
	Caller string `json:"caller"`
}

type escrowResolveParams struct {
	ID              uint64 `json:"id"`
	Caller          string `json:"caller"`
	ReleaseToWorker bool   `json:"releaseToWorker"`
}

type escrowIDParams struct {
	ID uint64 `json:"id"`
}

type escrowJSON struct {
	ID                uint64  `json:"id"`
	JobID             uint64  `json:"jobId"`
	Employer          string  `json:"employer"`
	Worker            *string `json:"worker,omitempty"`
	Amount            string  `json:"amount"`
	FeeBps            uint32  `json:"feeBps"`
	Status            string  `json:"status"`
	EmployerConfirmed bool    `json:"employerConfirmed"`
	WorkerConfirmed   bool    `json:"workerConfirmed"`
	CreatedAt         int64   `json:"createdAt"`
	LockedAt          int64   `json:"lockedAt,omitempty"`
	CompletedAt       int64   `json:"completedAt,omitempty"`
	DisputeRaisedAt   int64   `json:"disputeRaisedAt,omitempty"`
}

func escrowToJSON(esc *escrow.Escrow) *escrowJSON {
	out := &escrowJSON{
		ID:                esc.ID,
		JobID:             esc.JobID,
		Employer:          crypto.NewAddress(crypto.WRKPrefix, esc.Employer[:]).String(),
		Amount:            esc.Amount.String(),
		FeeBps:            esc.FeeBps,
		Status:            esc.Status.String(),
		EmployerConfirmed: esc.EmployerConfirmed,
		WorkerConfirmed:   esc.WorkerConfirmed,
		CreatedAt:         esc.CreatedAt,
		LockedAt:          esc.LockedAt,
		CompletedAt:       esc.CompletedAt,
		DisputeRaisedAt:   esc.DisputeRaisedAt,
	}
	if esc.HasWorker() {
		worker := crypto.NewAddress(crypto.WRKPrefix, esc.Worker[:]).String()
		out.Worker = &worker
	}
	return out
}

func parseAddressParam(value, field string) (crypto.Address, error) {
	addr, err := crypto.DecodeAddress(strings.TrimSpace(value))
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func parsePositiveBigInt(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return amount, nil
}

func (s *Server) handleEscrowCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	employer, err := parseAddressParam(params.Employer, "employer")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	var worker crypto.Address
	if strings.TrimSpace(params.Worker) != "" {
		worker, err = parseAddressParam(params.Worker, "worker")
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	esc, err := s.node.EscrowCreate(params.JobID, employer, worker, amount)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, escrowToJSON(esc))
}

func (s *Server) handleEscrowFund(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowFundParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	from, err := parseAddressParam(params.From, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	value, err := parsePositiveBigInt(params.Value)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowFund(params.ID, from, value); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	s.writeEscrowRecord(w, req.ID, params.ID)
}

func (s *Server) handleEscrowLock(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowActorOp(w, req, s.node.EscrowLock)
}

func (s *Server) handleEscrowConfirm(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowActorOp(w, req, s.node.EscrowConfirm)
}

func (s *Server) handleEscrowRaiseDispute(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowActorOp(w, req, s.node.EscrowDispute)
}

func (s *Server) handleEscrowAutoRelease(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	s.handleEscrowActorOp(w, req, s.node.EscrowAutoRelease)
}

func (s *Server) handleEscrowActorOp(w http.ResponseWriter, req *RPCRequest, op func(uint64, crypto.Address) error) {
	var params escrowActorParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := op(params.ID, caller); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	s.writeEscrowRecord(w, req.ID, params.ID)
}

func (s *Server) handleEscrowResolve(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowResolveParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddressParam(params.Caller, "caller")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.EscrowResolve(params.ID, caller, params.ReleaseToWorker); err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	s.writeEscrowRecord(w, req.ID, params.ID)
}

func (s *Server) handleEscrowGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params escrowIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	s.writeEscrowRecord(w, req.ID, params.ID)
}

func (s *Server) writeEscrowRecord(w http.ResponseWriter, reqID interface{}, id uint64) {
	esc, err := s.node.EscrowGet(id)
	if err != nil {
		writeDomainError(w, reqID, err)
		return
	}
	writeResult(w, reqID, escrowToJSON(esc))
}

func (s *Server) handleEscrowCount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	count, err := s.node.EscrowCount()
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"count": count})
}

func (s *Server) handleEscrowFeeBps(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	writeResult(w, req.ID, map[string]uint32{"feeBps": s.node.EscrowFeeBps()})
}
