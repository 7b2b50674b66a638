// Package insights composes the explanation text returned with a
// prediction: remote generation when a credential is configured, a fixed
// template otherwise or whenever the remote call does not produce text.
package insights

const (
	SourceRemote   = "remote"
	SourceTemplate = "template"
)

// Reason says why a remote attempt produced no text.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonNoCredential Reason = "no_credential"
	ReasonTimeout      Reason = "timeout"
	ReasonNetwork      Reason = "network"
	ReasonBadStatus    Reason = "bad_status"
	ReasonMalformed    Reason = "malformed_response"
	ReasonEmpty        Reason = "empty_response"
)

// Result is the outcome of one remote generation.
type Result struct {
	Text   string
	Reason Reason
	Err    error
}

func (r Result) OK() bool {
	return r.Reason == ReasonNone && r.Text != ""
}

func failed(reason Reason, err error) Result {
	return Result{Reason: reason, Err: err}
}

// Insight is the text handed back to clients and where it came from.
type Insight struct {
	Text   string
	Source string
	Reason Reason
}
