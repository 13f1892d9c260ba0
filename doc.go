// Package ppgrid trains and evaluates probabilistic predicates: cheap binary
// classifiers that decide, per image, whether an expensive query predicate
// could hold, so that the rest of a pipeline can skip the images that
// cannot match.
//
// A training run crosses every preprocessing variant with every model
// family and every synthetic label, fits one model per combination and
// scores each of them on held-out data.
//
// # Packages
//
//   - dataset: image tensors, attribute tables and directory loading
//   - labels: turns attribute tables into 0/1 label vectors
//   - preprocessing: the two-phase transform registry (none, pca, scale, minmax)
//   - sklearn/...: the model families (kde, svm, dnn, rf, lr)
//   - pp: the orchestrator, trainer, evaluator and registries
//   - config, report, cmd/ppgrid: configuration, output and the CLI
//
// # Quick Start
//
//	cfg := pp.DefaultConfig()
//	o, err := pp.NewOrchestrator(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := o.TrainAll(ctx, trainSet); err != nil {
//	    log.Fatal(err)
//	}
//	if _, err := o.Evaluate(ctx, testSet); err != nil {
//	    log.Fatal(err)
//	}
//	stats, _ := o.CategoryStats("car")
//	fmt.Println(stats["pca/svm"].Score())
//
// Failures of single combinations never stop a run; they are collected in
// the returned reports as TrainingError and EvaluationError values.
//
// # Error Handling
//
// Errors carry stack traces through github.com/cockroachdb/errors and can be
// inspected with errors.As:
//
//	var cfgErr *errors.ConfigurationError
//	if errors.As(err, &cfgErr) {
//	    // invalid configuration, nothing was trained
//	}
//
// # Logging
//
// Structured JSON logs are written through github.com/rs/zerolog; see
// pkg/log. Library warnings such as ConvergenceWarning are routed to the
// same logger.
package ppgrid
