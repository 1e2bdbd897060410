package detector

import (
	"context"
	"errors"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/depscout/pkg/broadcast"
)

// SignalKind classifies a coordination [Signal].
type SignalKind string

const (
	// SignalContainerBuildContext announces a directory used as a container
	// build context.
	SignalContainerBuildContext SignalKind = "container-build-context"
)

// Signal is a coordination message detectors exchange during a scan.
type Signal struct {
	Kind     SignalKind `json:"kind"`
	Dir      string     `json:"dir"`
	Detector string     `json:"detector,omitempty"`
	Ref      string     `json:"ref,omitempty"`
}

// Env holds what a detector factory may capture. It is passed explicitly
// when the scan builds its detectors.
type Env struct {
	Logger  *log.Logger
	Signals *broadcast.Channel[Signal]
}

// Log returns the logger, falling back to the default logger.
func (e Env) Log() *log.Logger {
	if e.Logger == nil {
		return log.Default()
	}
	return e.Logger
}

// Publish sends sig on the signal channel. Without a channel it does
// nothing. Publishing after the scan completed the channel is not an error.
// A tap installed on ctx with [WithSignalTap] sees sig as well.
func (e Env) Publish(ctx context.Context, sig Signal) error {
	if e.Signals != nil {
		if err := e.Signals.Publish(ctx, sig); err != nil && !errors.Is(err, broadcast.ErrCompleted) {
			return err
		}
	}
	if tap, ok := ctx.Value(signalTapKey{}).(func(Signal)); ok {
		tap(sig)
	}
	return nil
}

type signalTapKey struct{}

// WithSignalTap returns a context under which [Env.Publish] also passes
// every published signal to tap. Scans use it to keep the signals of one
// detector invocation next to its cached output. tap must be safe for
// concurrent use.
func WithSignalTap(ctx context.Context, tap func(Signal)) context.Context {
	return context.WithValue(ctx, signalTapKey{}, tap)
}
