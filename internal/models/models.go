package models

import (
	"github.com/kartoza/solvency/internal/model"
)

// PredictRequest is a client record plus the model to score it with.
// Model accepts a selector id ("knn", "log_reg") or its display name; empty uses the default.
type PredictRequest struct {
	model.ClientRecord
	Model string `json:"model,omitempty"`
}

// PredictResponse contains one decision
type PredictResponse struct {
	Label       string  `json:"label"`
	Solvent     bool    `json:"solvent"`
	Probability float64 `json:"probability"`
	Percent     string  `json:"percent"`
	Message     string  `json:"message"`
	Model       string  `json:"model"`
	ModelName   string  `json:"model_name"`
	Cached      bool    `json:"cached"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Error kinds
const (
	ErrorKindInvalidRecord = "invalid_record"
	ErrorKindUnknownModel  = "unknown_model"
	ErrorKindInference     = "inference"
)
