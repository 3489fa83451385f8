// Package optimizer fits FSRS parameters to review history.
//
// [Optimizer] implements cardsched.ParamsOptimizer. It trains the 21
// parameters with mini-batch gradient descent using Adam with a
// cosine-annealed learning rate, clamped to the parameter bounds after every
// step. Gradients are taken by central differences of the binary cross-entropy between predicted retrievability
// and whether each cross-day review was recalled.
//
//	opt := optimizer.New(optimizer.Config{Logger: log})
//	trainer, err := cardsched.NewTrainer(cardsched.TrainerConfig{Scheduler: sched, Optimizer: opt})
//	resp, err := trainer.ComputeParams(ctx, cardsched.ComputeParamsRequest{Search: "preset:1"})
//
// Training needs at least Config.MinSamples cross-day reviews; below that
// ComputeParameters returns cardsched.ErrInsufficientData.
package optimizer
