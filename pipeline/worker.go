package pipeline

import (
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/lookatitude/videogen/admission"
	"github.com/lookatitude/videogen/cache"
	"github.com/lookatitude/videogen/operator"
	"github.com/lookatitude/videogen/prosody"
	"github.com/lookatitude/videogen/registry"
)

// Deps collects the components an Activities value needs to run a job's
// stages: the shared cache, the GPU admission controller, the operator
// registry stage implementations are looked up in, the job registry
// stage status is mirrored into, and the prosody engine.
type Deps struct {
	Cache     *cache.ResultCache
	Admission *admission.Controller
	Operators *operator.Registry
	Registry  registry.Registry
	Prosody   *prosody.Engine
}

// NewWorker builds a Temporal worker.Worker registered for JobWorkflow and
// every Activities method, listening on cfg.TaskQueue. The caller owns the
// client.Client lifecycle (Close it on shutdown); NewWorker only registers
// and does not start polling until Run is called.
func NewWorker(temporalClient client.Client, cfg Config, deps Deps) (worker.Worker, error) {
	if temporalClient == nil {
		return nil, fmt.Errorf("pipeline: temporal client cannot be nil")
	}
	if cfg.TaskQueue == "" {
		return nil, fmt.Errorf("pipeline: task queue cannot be empty")
	}

	w := worker.New(temporalClient, cfg.TaskQueue, worker.Options{})

	w.RegisterWorkflow(JobWorkflow)

	acts := &Activities{
		Cache:     deps.Cache,
		Admission: deps.Admission,
		Operators: deps.Operators,
		Registry:  deps.Registry,
		Prosody:   deps.Prosody,
	}
	// Registered under explicit names (matching the pipeline's Activity*
	// constants) rather than the methods' default derived names, so
	// workflow.go's name-based ExecuteActivity calls never depend on Go's
	// method-name reflection staying in sync with a renamed method.
	w.RegisterActivityWithOptions(acts.DetectPerson, activity.RegisterOptions{Name: ActivityDetectPerson})
	w.RegisterActivityWithOptions(acts.RemoveBackground, activity.RegisterOptions{Name: ActivityRemoveBackground})
	w.RegisterActivityWithOptions(acts.Synthesize, activity.RegisterOptions{Name: ActivitySynthesize})
	w.RegisterActivityWithOptions(acts.AdjustProsody, activity.RegisterOptions{Name: ActivityAdjustProsody})
	w.RegisterActivityWithOptions(acts.MixBGM, activity.RegisterOptions{Name: ActivityMixBGM})
	w.RegisterActivityWithOptions(acts.SubmitTalkingHead, activity.RegisterOptions{Name: ActivitySubmitTalkingHead})

	return w, nil
}
