package replcoordinator

import (
	"github.com/juju/clock"
	"github.com/juju/worker/v4"
	"github.com/juju/worker/v4/catacomb"

	"github.com/jujuclone/replcoord/internal/metrics"
	"github.com/jujuclone/replcoord/internal/netdispatch"
	"github.com/jujuclone/replcoord/internal/pubsubhub"
)

// rcWorker supervises a Coordinator's lifetime via catacomb, the same
// pattern the teacher uses for every long-running component: a tomb-backed
// goroutine that exists solely to notice external Kill requests and tear
// the collaborator down cleanly.
type rcWorker struct {
	catacomb catacomb.Catacomb
	coord    *Coordinator
}

// NewWorker builds a Coordinator and wraps it in a worker.Worker so it can
// be supervised by a dependency engine the way the teacher supervises its
// own facades (start, run until Kill, Wait for the tomb to unwind).
func NewWorker(settings Settings, clk clock.Clock, dispatch *netdispatch.Dispatcher, persist PersistenceHook, metricsCollector *metrics.Collector, hub *pubsubhub.Hub) (worker.Worker, *Coordinator, error) {
	coord := New(settings, clk, dispatch, persist, metricsCollector, hub)
	w := &rcWorker{coord: coord}
	err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.run,
	})
	if err != nil {
		return nil, nil, err
	}
	return w, coord, nil
}

func (w *rcWorker) run() error {
	<-w.catacomb.Dying()
	w.coord.Shutdown()
	return w.catacomb.ErrDying()
}

// Kill implements worker.Worker.
func (w *rcWorker) Kill() { w.catacomb.Kill(nil) }

// Wait implements worker.Worker.
func (w *rcWorker) Wait() error { return w.catacomb.Wait() }
