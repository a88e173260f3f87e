package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// Call is a single entry of a multicall batch. It is built right before
// submission and never persisted.
type Call struct {
	Target       common.Address
	Data         []byte
	AllowFailure bool
	Label        string // human readable description, e.g. "whitelist(Pool)"
}

// CallOutcome is the result of one call inside a submitted batch
type CallOutcome struct {
	Call       Call
	Success    bool
	ReturnData []byte
}

// BatchResult describes one submitted multicall transaction
type BatchResult struct {
	Multicall common.Address
	TxHash    common.Hash
	Outcomes  []CallOutcome
}

// Failed returns the outcomes of calls that reverted inside the batch
func (r *BatchResult) Failed() []CallOutcome {
	var failed []CallOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			failed = append(failed, o)
		}
	}
	return failed
}
