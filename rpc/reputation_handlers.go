package rpc

import (
	"net/http"
)

type reputationRateParams struct {
	Subject  string `json:"subject"`
	Rater    string `json:"rater"`
	EscrowID uint64 `json:"escrowId"`
	Score    uint8  `json:"score"`
}

type reputationSubjectParams struct {
	Subject string `json:"subject"`
}

type reputationScoreJSON struct {
	Subject string `json:"subject"`
	Total   uint64 `json:"total"`
	Count   uint64 `json:"count"`
}

type balanceParams struct {
	Address string `json:"address"`
}

type balanceJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (s *Server) handleReputationRate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params reputationRateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	subject, err := parseAddressParam(params.Subject, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	rater, err := parseAddressParam(params.Rater, "rater")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	rating, err := s.node.ReputationRate(subject, rater, params.EscrowID, params.Score)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"subject":   params.Subject,
		"rater":     params.Rater,
		"escrowId":  rating.EscrowID,
		"score":     rating.Score,
		"createdAt": rating.CreatedAt,
	})
}

func (s *Server) handleReputationScore(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params reputationSubjectParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	subject, err := parseAddressParam(params.Subject, "subject")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	score, err := s.node.ReputationScore(subject)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &reputationScoreJSON{
		Subject: subject.String(),
		Total:   score.Total,
		Count:   score.Count,
	})
}

func (s *Server) handleLedgerBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params balanceParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	addr, err := parseAddressParam(params.Address, "address")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	balance, err := s.node.Balance(addr)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, &balanceJSON{Address: addr.String(), Balance: balance.String()})
}
