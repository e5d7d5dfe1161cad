package events

const KindResponseDone Kind = "response.done"

// ResponseDone marks the end of a full model response, after any text,
// audio, and function-call streams it contained.
type ResponseDone struct {
	Base
	ResponseID string
}

func (e ResponseDone) String() string { return "Response Done" }

func NewResponseDone(responseID string) ResponseDone {
	return ResponseDone{Base: NewBase(KindResponseDone), ResponseID: responseID}
}
