package view

import "github.com/DoyleJ11/imposter-client/internal/engine"

type Msg interface{ isViewMsg() }

type CreateLobby struct{ Reply chan error }

type JoinByCode struct {
	Code  string
	Reply chan error
}

type SubmitName struct {
	Name  string
	Reply chan error
}

type StartRound struct {
	Impostors string
	Reply     chan error
}

type EndRound struct{ Reply chan error }

type RestartRound struct {
	Impostors int
	Reply     chan error
}

type Leave struct{ Reply chan error }

type GetState struct {
	Reply chan engine.Snapshot
}

func (CreateLobby) isViewMsg()  {}
func (JoinByCode) isViewMsg()   {}
func (SubmitName) isViewMsg()   {}
func (StartRound) isViewMsg()   {}
func (EndRound) isViewMsg()     {}
func (RestartRound) isViewMsg() {}
func (Leave) isViewMsg()        {}
func (GetState) isViewMsg()     {}
