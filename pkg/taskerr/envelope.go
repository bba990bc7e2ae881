package taskerr

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the per-task result handed back to callers
type Envelope struct {
	Status  string      `json:"status"`
	Result  interface{} `json:"result,omitempty"`
	Message string      `json:"message,omitempty"`

	// Kind is set on error envelopes for in-process callers; it is not serialized.
	Kind Kind `json:"-"`
}

// Success wraps a collaborator result
func Success(result interface{}) Envelope {
	return Envelope{Status: StatusSuccess, Result: result}
}

// Failure wraps a message as an error envelope
func Failure(kind Kind, message string) Envelope {
	return Envelope{Status: StatusError, Message: message, Kind: kind}
}

// FromError converts err into an error envelope, keeping its Kind
func FromError(err error) Envelope {
	return Failure(KindOf(err), err.Error())
}

// OK reports whether e is a success envelope
func (e Envelope) OK() bool { return e.Status == StatusSuccess }

// MarshalJSON emits exactly {status,result} or {status,message}
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Status == StatusSuccess {
		return json.Marshal(struct {
			Status string      `json:"status"`
			Result interface{} `json:"result"`
		}{e.Status, e.Result})
	}
	return json.Marshal(struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}{e.Status, e.Message})
}
