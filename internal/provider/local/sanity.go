package local

import "answerd/internal/common/fsutil"

// SanityReport describes runtime checks for local dependencies.
type SanityReport struct {
	AcceleratedBuilt bool   `json:"accelerated_built"`
	ServerFound      bool   `json:"llama_server_found"`
	ServerPath       string `json:"llama_server_path,omitempty"`
	Models           int    `json:"models"`
	Error            string `json:"error,omitempty"`
}

// SanityCheck reports whether the local runtimes can run. It does not start
// anything.
func SanityCheck(serverBin string, modelCount int) SanityReport {
	r := SanityReport{AcceleratedBuilt: llamaBuilt, Models: modelCount}
	if serverBin == "" {
		serverBin = "llama-server"
	}
	p, err := fsutil.FindExecutable(serverBin, "./bin")
	if err != nil {
		r.ServerPath = serverBin
		r.Error = err.Error()
		return r
	}
	r.ServerFound = true
	r.ServerPath = p
	return r
}
