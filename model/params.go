package model

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ParamTensor is a serializable snapshot of one parameter.
type ParamTensor struct {
	Shape []int
	Data  []float32
}

// ExportParams copies every parameter out of the graph, for checkpointing.
func (c *Classifier) ExportParams() (map[string]ParamTensor, error) {
	params, err := c.Params()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ParamTensor, len(params))
	for _, name := range c.names {
		live := params[name]
		pt := ParamTensor{
			Shape: append([]int(nil), c.learnables[name].Shape()...),
			Data:  make([]float32, len(live)),
		}
		copy(pt.Data, live)
		out[name] = pt
	}
	return out, nil
}

// ImportParams writes a checkpoint snapshot back into the graph. Every
// parameter must be present with a matching shape.
func (c *Classifier) ImportParams(snapshot map[string]ParamTensor) error {
	params, err := c.Params()
	if err != nil {
		return err
	}
	for _, name := range c.names {
		pt, ok := snapshot[name]
		if !ok {
			return fmt.Errorf("model: checkpoint is missing parameter %s", name)
		}
		want := c.learnables[name].Shape()
		if !shapeEqual(pt.Shape, want) {
			return fmt.Errorf("model: checkpoint shape %v for %s, graph has %v", pt.Shape, name, want)
		}
		live := params[name]
		if len(pt.Data) != len(live) {
			return fmt.Errorf("model: checkpoint has %d values for %s, graph has %d", len(pt.Data), name, len(live))
		}
		copy(live, pt.Data)
	}
	return nil
}

func shapeEqual(a []int, b tensor.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
