// Package model implements the bag-of-words neural section classifier on a
// gorgonia expression graph.
package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config fixes the graph shapes. The batch size is baked into the graph, so
// every batch fed to Run must have exactly BatchSize rows.
type Config struct {
	VocabSize  int
	EmbedDim   int
	HiddenDim  int
	NumClasses int
	BatchSize  int
}

func (cfg Config) validate() error {
	if cfg.VocabSize < 1 || cfg.EmbedDim < 1 || cfg.HiddenDim < 1 {
		return fmt.Errorf("model: non-positive dimension in %+v", cfg)
	}
	if cfg.NumClasses < 2 {
		return fmt.Errorf("model: need at least 2 classes, got %d", cfg.NumClasses)
	}
	if cfg.BatchSize < 1 {
		return fmt.Errorf("model: batch size %d", cfg.BatchSize)
	}
	return nil
}

// Classifier averages token embeddings per sentence and scores them with a
// two-layer network. The forward pass, softmax cross-entropy cost and the
// gradients for every parameter live on a single taped graph.
type Classifier struct {
	cfg Config

	g    *gorgonia.ExprGraph
	x, y *gorgonia.Node

	names      []string
	learnables map[string]*gorgonia.Node
	gradients  map[string]*gorgonia.Node

	probs *gorgonia.Node
	cost  *gorgonia.Node

	vm gorgonia.VM
}

// New builds the graph and the tape machine that executes it.
func New(cfg Config) (*Classifier, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	g := gorgonia.NewGraph()

	x := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(cfg.BatchSize, cfg.VocabSize),
		gorgonia.WithName("x"))
	y := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(cfg.BatchSize, cfg.NumClasses),
		gorgonia.WithName("y"))

	embed := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(cfg.VocabSize, cfg.EmbedDim),
		gorgonia.WithName("embed"),
		gorgonia.WithValue(embedInit(cfg.VocabSize, cfg.EmbedDim)))
	w1 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(cfg.EmbedDim, cfg.HiddenDim),
		gorgonia.WithName("w1"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b1 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(1, cfg.HiddenDim),
		gorgonia.WithName("b1"),
		gorgonia.WithInit(gorgonia.Zeroes()))
	w2 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(cfg.HiddenDim, cfg.NumClasses),
		gorgonia.WithName("w2"),
		gorgonia.WithInit(gorgonia.GlorotU(1.0)))
	b2 := gorgonia.NewMatrix(g, tensor.Float32,
		gorgonia.WithShape(1, cfg.NumClasses),
		gorgonia.WithName("b2"),
		gorgonia.WithInit(gorgonia.Zeroes()))

	c := &Classifier{
		cfg:   cfg,
		g:     g,
		x:     x,
		y:     y,
		names: []string{"embed", "w1", "b1", "w2", "b2"},
		learnables: map[string]*gorgonia.Node{
			"embed": embed, "w1": w1, "b1": b1, "w2": w2, "b2": b2,
		},
		gradients: make(map[string]*gorgonia.Node),
	}
	if err := c.buildForward(); err != nil {
		return nil, err
	}

	learn := c.learnableNodes()
	grads, err := gorgonia.Grad(c.cost, learn...)
	if err != nil {
		return nil, fmt.Errorf("model: gradient construction failed: %w", err)
	}
	for i, name := range c.names {
		c.gradients[name] = grads[i]
	}

	c.vm = gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(learn...))
	return c, nil
}

func (c *Classifier) buildForward() error {
	// sentence embedding: averaged token embeddings via the bow matrix
	xe, err := gorgonia.Mul(c.x, c.learnables["embed"])
	if err != nil {
		return fmt.Errorf("model: embedding lookup failed: %w", err)
	}

	h, err := gorgonia.Mul(xe, c.learnables["w1"])
	if err != nil {
		return fmt.Errorf("model: hidden layer failed: %w", err)
	}
	h, err = gorgonia.BroadcastAdd(h, c.learnables["b1"], nil, []byte{0})
	if err != nil {
		return fmt.Errorf("model: hidden bias failed: %w", err)
	}
	h, err = gorgonia.Rectify(h)
	if err != nil {
		return fmt.Errorf("model: activation failed: %w", err)
	}

	logits, err := gorgonia.Mul(h, c.learnables["w2"])
	if err != nil {
		return fmt.Errorf("model: output layer failed: %w", err)
	}
	logits, err = gorgonia.BroadcastAdd(logits, c.learnables["b2"], nil, []byte{0})
	if err != nil {
		return fmt.Errorf("model: output bias failed: %w", err)
	}

	c.probs, err = gorgonia.SoftMax(logits)
	if err != nil {
		return fmt.Errorf("model: softmax failed: %w", err)
	}

	// cross entropy against the one-hot targets
	eps := gorgonia.NewConstant(float32(1e-8), gorgonia.WithName("eps"))
	safe, err := gorgonia.Add(c.probs, eps)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	logProbs, err := gorgonia.Log(safe)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	ce, err := gorgonia.HadamardProd(c.y, logProbs)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	perRow, err := gorgonia.Sum(ce, 1)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	mean, err := gorgonia.Mean(perRow)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	c.cost, err = gorgonia.Neg(mean)
	if err != nil {
		return fmt.Errorf("model: loss failed: %w", err)
	}
	return nil
}

func (c *Classifier) learnableNodes() gorgonia.Nodes {
	nodes := make(gorgonia.Nodes, len(c.names))
	for i, name := range c.names {
		nodes[i] = c.learnables[name]
	}
	return nodes
}

// embedInit draws the embedding weights from a uniform distribution scaled by
// the embedding dimension.
func embedInit(vocabSize, dim int) *tensor.Dense {
	dist := distuv.Uniform{
		Min: -1 / math.Sqrt(float64(dim)),
		Max: 1 / math.Sqrt(float64(dim)),
	}
	backing := make([]float32, vocabSize*dim)
	for i := range backing {
		backing[i] = float32(dist.Rand())
	}
	return tensor.New(tensor.WithShape(vocabSize, dim), tensor.WithBacking(backing))
}

// Config returns the graph configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// ParamNames returns the parameter names in a stable order.
func (c *Classifier) ParamNames() []string {
	return append([]string(nil), c.names...)
}

// Run executes the graph on one batch. The returned loss is the in-graph
// cross entropy over all rows; probs holds one row of class probabilities
// per batch row. Run never updates parameters.
func (c *Classifier) Run(in *BatchInput) (loss float64, probs [][]float32, err error) {
	if err = gorgonia.Let(c.x, in.X); err != nil {
		return 0, nil, fmt.Errorf("model: setting input failed: %w", err)
	}
	if err = gorgonia.Let(c.y, in.Y); err != nil {
		return 0, nil, fmt.Errorf("model: setting target failed: %w", err)
	}
	c.vm.Reset()
	if err = c.vm.RunAll(); err != nil {
		return 0, nil, fmt.Errorf("model: vm.RunAll failed: %w", err)
	}

	costVal := c.cost.Value()
	if costVal == nil {
		return 0, nil, fmt.Errorf("model: cost value is nil")
	}
	cv, ok := costVal.Data().(float32)
	if !ok {
		return 0, nil, fmt.Errorf("model: cost is not a float32 scalar")
	}
	loss = float64(cv)

	probsVal := c.probs.Value()
	if probsVal == nil {
		return 0, nil, fmt.Errorf("model: probs value is nil")
	}
	flat, ok := probsVal.Data().([]float32)
	if !ok {
		return 0, nil, fmt.Errorf("model: probs data is not []float32")
	}
	B, C := c.cfg.BatchSize, c.cfg.NumClasses
	probs = make([][]float32, B)
	for i := 0; i < B; i++ {
		row := make([]float32, C)
		copy(row, flat[i*C:(i+1)*C])
		probs[i] = row
	}
	return loss, probs, nil
}

// Params returns the live backing slices of every parameter, keyed by name.
// Writing into a slice updates the model.
func (c *Classifier) Params() (map[string][]float32, error) {
	out := make(map[string][]float32, len(c.names))
	for _, name := range c.names {
		val := c.learnables[name].Value()
		if val == nil {
			return nil, fmt.Errorf("model: parameter %s has no value", name)
		}
		data, ok := val.Data().([]float32)
		if !ok {
			return nil, fmt.Errorf("model: parameter %s is not []float32", name)
		}
		out[name] = data
	}
	return out, nil
}

// Grads returns the gradient slices computed by the last Run, keyed by
// parameter name.
func (c *Classifier) Grads() (map[string][]float32, error) {
	out := make(map[string][]float32, len(c.names))
	for _, name := range c.names {
		val := c.gradients[name].Value()
		if val == nil {
			return nil, fmt.Errorf("model: gradient for %s has no value; run a batch first", name)
		}
		data, ok := val.Data().([]float32)
		if !ok {
			return nil, fmt.Errorf("model: gradient for %s is not []float32", name)
		}
		out[name] = data
	}
	return out, nil
}

// Close releases the underlying virtual machine.
func (c *Classifier) Close() error {
	return c.vm.Close()
}
