package scheduler

import "log/slog"

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) OnOrderAdd(prev, next Handle) {}
func (NopObserver) OnOrderRem(prev, next Handle) {}

// LogObserver writes every edge event to a logger at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) OnOrderAdd(prev, next Handle) {
	o.Logger.Debug("Ordering edge added.", "prev", prev.String(), "next", next.String())
}

func (o LogObserver) OnOrderRem(prev, next Handle) {
	o.Logger.Debug("Ordering edge removed.", "prev", prev.String(), "next", next.String())
}

type multiObserver []Observer

// Multi fans events out to every observer in order. Nil observers are skipped.
func Multi(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return NopObserver{}
	case 1:
		return m[0]
	}
	return m
}

func (m multiObserver) OnOrderAdd(prev, next Handle) {
	for _, o := range m {
		o.OnOrderAdd(prev, next)
	}
}

func (m multiObserver) OnOrderRem(prev, next Handle) {
	for _, o := range m {
		o.OnOrderRem(prev, next)
	}
}
