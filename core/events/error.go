package events

const KindError Kind = "error"

type ModelError struct {
	Base
	Code    string
	Message string
}

func (e ModelError) String() string { return "Error: " + e.Message }

func (e ModelError) Error() string { return e.Message }

func NewModelError(code, message string) ModelError {
	return ModelError{Base: NewBase(KindError), Code: code, Message: message}
}
