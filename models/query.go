package models

type QueryRequest struct {
	Query string `json:"query"`
}

// QueryResponse carries either Answer or Error, never both.
type QueryResponse struct {
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
}
