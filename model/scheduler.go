package model

import (
	"fmt"
	"math"

	"go-ml.dev/pkg/zorros/zlog"
)

/*
ReduceLROnPlateau shrinks the optimizer's learning rate by Factor after
Patience consecutive Step calls without validation-loss improvement.
*/
type ReduceLROnPlateau struct {
	Opt      Optimizer
	Factor   float64
	Patience int
	MinLR    float64

	best float64
	bad  int
}

func NewReduceLROnPlateau(opt Optimizer, factor float64, patience int) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		Opt:      opt,
		Factor:   factor,
		Patience: patience,
		best:     math.Inf(1),
	}
}

func (s *ReduceLROnPlateau) Step(valLoss float64) {
	if valLoss < s.best {
		s.best = valLoss
		s.bad = 0
		return
	}
	s.bad++
	if s.bad <= s.Patience {
		return
	}
	lr := math.Max(s.Opt.LearningRate()*s.Factor, s.MinLR)
	if lr < s.Opt.LearningRate() {
		zlog.Info(fmt.Sprintf("reducing learning rate to %g", lr))
		s.Opt.SetLearningRate(lr)
	}
	s.bad = 0
}
