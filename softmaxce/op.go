package softmaxce

import (
	"github.com/sw965/xent/op"
)

const (
	OpType      = "softmax_with_cross_entropy"
	LogitsName  = "Logits"
	LabelName   = "Label"
	SoftmaxName = "Softmax"
	LossName    = "Loss"
)

func forwardOp(ins op.Vars) (op.Vars, error) {
	logits, err := ins.General(LogitsName)
	if err != nil {
		return nil, err
	}
	labels, err := ins.Index(LabelName)
	if err != nil {
		return nil, err
	}

	softmax, loss, err := Forward(logits, labels)
	if err != nil {
		return nil, err
	}
	return op.Vars{
		SoftmaxName: op.NewGeneralVar(softmax),
		LossName:    op.NewGeneralVar(loss),
	}, nil
}

func backwardOp(ins, outs, outGrads op.Vars) (op.Vars, error) {
	labels, err := ins.Index(LabelName)
	if err != nil {
		return nil, err
	}
	softmax, err := outs.General(SoftmaxName)
	if err != nil {
		return nil, err
	}
	dLoss, err := outGrads.General(op.GradName(LossName))
	if err != nil {
		return nil, err
	}

	dLogits, err := Backward(softmax, labels, dLoss)
	if err != nil {
		return nil, err
	}
	return op.Vars{op.GradName(LogitsName): op.NewGeneralVar(dLogits)}, nil
}

func init() {
	err := op.Register(op.Op{
		Type:     OpType,
		Inputs:   []string{LogitsName, LabelName},
		Outputs:  []string{SoftmaxName, LossName},
		Forward:  forwardOp,
		Backward: backwardOp,
	})
	if err != nil {
		panic(err)
	}
}
