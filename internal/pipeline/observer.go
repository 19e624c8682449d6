package pipeline

// Observer receives run events synchronously as the pipeline advances.
// Implementations must return quickly.
type Observer interface {
	OnProgress(completed, total int)
	OnLog(line string)
	OnSummary(result RunResult)
}

// NopObserver discards every event
type NopObserver struct{}

func (NopObserver) OnProgress(int, int) {}
func (NopObserver) OnLog(string)        {}
func (NopObserver) OnSummary(RunResult) {}
