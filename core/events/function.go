package events

const KindFunctionCallDone Kind = "function_call.done"

// FunctionCallDone reports that the model finished emitting a function call
// and expects a result submitted under CallID.
type FunctionCallDone struct {
	Base
	Name      string
	CallID    string
	Arguments string
}

func (e FunctionCallDone) String() string { return "Function Call: " + e.Name }

func NewFunctionCallDone(name, callID, arguments string) FunctionCallDone {
	return FunctionCallDone{
		Base:      NewBase(KindFunctionCallDone),
		Name:      name,
		CallID:    callID,
		Arguments: arguments,
	}
}
