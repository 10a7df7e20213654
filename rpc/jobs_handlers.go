package rpc

import (
	"net/http"

	"workledger/crypto"
	"workledger/native/jobs"
)

type jobCreateParams struct {
	Employer string `json:"employer"`
	Spec     string `json:"spec"`
}

type jobIDParams struct {
	ID uint64 `json:"id"`
}

type jobSetStatusParams struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
}

type jobJSON struct {
	ID        uint64 `json:"id"`
	Employer  string `json:"employer"`
	Spec      string `json:"spec"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

func jobToJSON(job *jobs.Job) *jobJSON {
	return &jobJSON{
		ID:        job.ID,
		Employer:  crypto.NewAddress(crypto.WRKPrefix, job.Employer[:]).String(),
		Spec:      job.Spec,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

func (s *Server) handleJobCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params jobCreateParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	employer, err := parseAddressParam(params.Employer, "employer")
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	job, err := s.node.JobCreate(employer, params.Spec)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobToJSON(job))
}

func (s *Server) handleJobGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params jobIDParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	job, err := s.node.JobGet(params.ID)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobToJSON(job))
}

func (s *Server) handleJobSetStatus(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params jobSetStatusParams
	if err := decodeSingleParam(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
		return
	}
	status := jobs.JobStatus(params.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", "unknown job status")
		return
	}
	job, err := s.node.JobSetStatus(params.ID, status)
	if err != nil {
		writeDomainError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, jobToJSON(job))
}
