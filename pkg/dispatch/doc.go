// Package dispatch runs batches of model and tool tasks concurrently.
//
// Each call to Dispatch opens a fresh approval session, prepares every task
// with the preprocessing pipeline and runs it on a bounded worker pool. Tool
// tasks go through the gate; model tasks resolve their parameters from the
// model catalog and call the model collaborator.
//
// Invariants:
//   - Dispatch returns exactly one envelope per task, in input order.
//   - A failing or panicking task never affects its siblings.
//   - A cancelled context turns tasks that have not started into error
//     envelopes and releases tasks waiting on approval.
//
// Usage:
//
//	d, err := dispatch.New(dispatch.Options{
//		Tools:     approval.NewCatalogStore(catalog),
//		Models:    models,
//		Presenter: approval.NewBroker(approval.NewConsolePresenter(os.Stdin, os.Stdout), 5*time.Minute),
//		Gate:      gate.New(registry, gate.Config{}),
//		Caller:    model.NewRouter(nil, model.NewOpenAIProvider(key)),
//	})
//	results := d.Dispatch(ctx, tasks)
package dispatch
