package dispatch

// AuxFuncs adapts a pair of functions to the sched.AuxDispatcher contract.
// Device backends with their own synchronization epoch (or anything else
// keyed to the step lifecycle, like timing probes) register through this.
type AuxFuncs struct {
	OnStart func()
	OnStop  func()
}

func (a AuxFuncs) StartEpoch() {
	if a.OnStart != nil {
		a.OnStart()
	}
}

func (a AuxFuncs) StopEpoch() {
	if a.OnStop != nil {
		a.OnStop()
	}
}
