package server

import (
	"github.com/N9work/CrewAi-Project/internal/agent/core"
)

// HTTPError is the error envelope returned by the server. Detail repeats
// Error for web clients that read FastAPI-style detail messages.
type HTTPError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
	Value  string `json:"value,omitempty"`
	Stage  *int   `json:"stage,omitempty"`
	Status int    `json:"upstream_status,omitempty"`
	RunID  string `json:"run_id,omitempty"`
}

// TripResponse is returned by a successful planning run.
type TripResponse struct {
	Message string             `json:"message"`
	Result  string             `json:"result"`
	RunID   string             `json:"run_id,omitempty"`
	Stages  []core.StageResult `json:"stages,omitempty"`
}

// CatalogResponse lists the ids a client may submit.
type CatalogResponse struct {
	Categories []string `json:"categories"`
	Styles     []string `json:"styles"`
	Costs      []string `json:"costs"`
	Durations  []string `json:"durations"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}
