package temporal

import (
	"fmt"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})
	Register(w)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// Registrar is the registration half of worker.Worker, also satisfied by the
// SDK's test environment.
type Registrar interface {
	RegisterWorkflow(w interface{})
	RegisterActivity(a interface{})
}

// Register adds the analysis workflow and its activities to r.
func Register(r Registrar) {
	r.RegisterWorkflow(AnalysisWorkflow)
	r.RegisterActivity(CartographerActivity)
	r.RegisterActivity(AggregatorActivity)
	r.RegisterActivity(DraftsmanActivity)
	r.RegisterActivity(SaveActivity)
}
