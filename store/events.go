package store

import "options-flow-tracker/models"

// event is anything processed by the store loop
type event interface{ isEvent() }

type flowEvent struct{ event models.FlowEvent }

type lifecycleEvent struct{ kind models.EventKind }

type refreshEvent struct{ reason string }

type statusEvent struct{ status models.ConnectionStatus }

type snapshotEvent struct {
	seq  uint64
	snap *models.Snapshot
	err  error
}

type seedEvent struct{ snap *models.Snapshot }

type toggleEvent struct{}

type simulateEvent struct {
	symbol string
	side   models.TradeSide
}

type commandEvent struct {
	command string
	err     error
}

func (flowEvent) isEvent()      {}
func (lifecycleEvent) isEvent() {}
func (refreshEvent) isEvent()   {}
func (statusEvent) isEvent()    {}
func (snapshotEvent) isEvent()  {}
func (seedEvent) isEvent()      {}
func (toggleEvent) isEvent()    {}
func (simulateEvent) isEvent()  {}
func (commandEvent) isEvent()   {}
