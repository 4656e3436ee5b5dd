package vm

import (
	"time"

	"github.com/zurustar/mission-vm/pkg/opcode"
)

// Observer receives execution events, e.g. for metrics.
// Calls happen on the goroutine running Update.
type Observer interface {
	ThreadStarted(label int)
	ThreadFinished(id int)
	CommandExecuted(cmd opcode.Cmd)
	Anomaly(errType ErrorType)
	TickCompleted(active int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ThreadStarted(int) {}
func (nopObserver) ThreadFinished(int) {}
func (nopObserver) CommandExecuted(opcode.Cmd) {}
func (nopObserver) Anomaly(ErrorType) {}
func (nopObserver) TickCompleted(int, time.Duration) {}
