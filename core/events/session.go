package events

const (
	KindSessionCreated Kind = "session.created"
	KindSessionUpdated Kind = "session.updated"
)

type SessionCreated struct {
	Base
	SessionID string
}

func (e SessionCreated) String() string { return "Session Created" }

func NewSessionCreated(sessionID string) SessionCreated {
	return SessionCreated{Base: NewBase(KindSessionCreated), SessionID: sessionID}
}

type SessionUpdated struct {
	Base
}

func (e SessionUpdated) String() string { return "Session Updated" }

func NewSessionUpdated() SessionUpdated {
	return SessionUpdated{Base: NewBase(KindSessionUpdated)}
}
