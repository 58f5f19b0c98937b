// Package model loads sigma/rho function trees from YAML model files.
//
// A model file looks like
//
//	name: two dependent flows
//	theta_max: 5
//	sigma:
//	  dependent_sum:
//	    - constant: 0.5
//	    - affine: {slope: 0.1, intercept: 0.2, limit: 10}
//	rho:
//	  affine: {slope: 0.2, intercept: -1, limit: 4}
//
// Every node carries exactly one of constant, affine, scaled, sum, max,
// dependent_sum or dependent_max. Hölder ids named by scaled nodes are
// kept; dependent_* nodes allocate fresh ids above them.
package model

import (
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

// File is the on-disk document.
type File struct {
	Name      string  `yaml:"name"`
	ThetaMax  float64 `yaml:"theta_max"`
	Sigma     *Node   `yaml:"sigma"`
	Rho       *Node   `yaml:"rho"`
	Objective *Node   `yaml:"objective"`
}

// Node is one function in the tree.
type Node struct {
	Constant     *float64    `yaml:"constant"`
	Affine       *AffineSpec `yaml:"affine"`
	Scaled       *ScaledSpec `yaml:"scaled"`
	Sum          []Node      `yaml:"sum"`
	Max          []Node      `yaml:"max"`
	DependentSum []Node      `yaml:"dependent_sum"`
	DependentMax []Node      `yaml:"dependent_max"`
}

// AffineSpec describes intercept + slope*theta. A missing limit means the
// function is defined for every positive theta.
type AffineSpec struct {
	Slope     float64  `yaml:"slope"`
	Intercept float64  `yaml:"intercept"`
	Limit     *float64 `yaml:"limit"`
}

// ScaledSpec rescales Of by the p or q part of Hoelder.
type ScaledSpec struct {
	Hoelder int    `yaml:"hoelder"`
	Part    string `yaml:"part"`
	Of      *Node  `yaml:"of"`
}

// Model is a built model file.
type Model struct {
	Name string
	// ThetaMax caps theta for bounds and minimization alike; +Inf when the
	// file sets none.
	ThetaMax float64
	// Arrival is nil when the file has no sigma/rho pair.
	Arrival *symbolic.Arrival
	// Objective is nil when the file has no objective.
	Objective symbolic.Function
}

// Load reads and builds the model file at path.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse builds a model from YAML.
func Parse(data []byte) (*Model, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode model: %w", err)
	}
	return f.Build()
}

// Build turns the document into symbolic functions.
func (f *File) Build() (*Model, error) {
	if (f.Sigma == nil) != (f.Rho == nil) {
		return nil, fmt.Errorf("%w: sigma and rho must be given together", symbolic.ErrBadInitialization)
	}
	if f.Sigma == nil && f.Objective == nil {
		return nil, fmt.Errorf("%w: model has neither sigma/rho nor objective", symbolic.ErrBadInitialization)
	}
	if f.ThetaMax < 0 || math.IsNaN(f.ThetaMax) {
		return nil, fmt.Errorf("%w: theta_max %g is negative", symbolic.ErrBadInitialization, f.ThetaMax)
	}

	m := &Model{Name: f.Name, ThetaMax: f.ThetaMax}
	if m.ThetaMax == 0 {
		m.ThetaMax = math.Inf(1)
	}

	b := &builder{}
	for _, n := range []*Node{f.Sigma, f.Rho, f.Objective} {
		if n != nil {
			b.reserve(n)
		}
	}

	if f.Sigma != nil {
		sigma, err := b.build(f.Sigma, "sigma")
		if err != nil {
			return nil, err
		}
		rho, err := b.build(f.Rho, "rho")
		if err != nil {
			return nil, err
		}
		if m.Arrival, err = symbolic.NewArrival(sigma, rho); err != nil {
			return nil, err
		}
	}
	if f.Objective != nil {
		obj, err := b.build(f.Objective, "objective")
		if err != nil {
			return nil, err
		}
		m.Objective = obj
	}
	return m, nil
}

type builder struct {
	ids symbolic.IDAllocator
}

// reserve records explicit ids so generated ones never collide with them.
func (b *builder) reserve(n *Node) {
	if n.Scaled != nil {
		b.ids.Reserve(symbolic.HoelderID(n.Scaled.Hoelder))
		if n.Scaled.Of != nil {
			b.reserve(n.Scaled.Of)
		}
	}
	for _, list := range [][]Node{n.Sum, n.Max, n.DependentSum, n.DependentMax} {
		for i := range list {
			b.reserve(&list[i])
		}
	}
}

func (b *builder) build(n *Node, path string) (symbolic.Function, error) {
	if n == nil {
		return nil, fmt.Errorf("%w: %s: missing node", symbolic.ErrBadInitialization, path)
	}
	if k := n.kinds(); len(k) != 1 {
		return nil, fmt.Errorf("%w: %s: node must have exactly one kind, has %v", symbolic.ErrBadInitialization, path, k)
	}

	switch {
	case n.Constant != nil:
		fn, err := symbolic.NewConstant(*n.Constant)
		return located(fn, err, path)
	case n.Affine != nil:
		limit := math.Inf(1)
		if n.Affine.Limit != nil {
			limit = *n.Affine.Limit
		}
		fn, err := symbolic.NewAffine(n.Affine.Slope, n.Affine.Intercept, limit)
		return located(fn, err, path)
	case n.Scaled != nil:
		return b.buildScaled(n.Scaled, path)
	case n.Sum != nil:
		terms, err := b.buildList(n.Sum, path+".sum")
		if err != nil {
			return nil, err
		}
		fn, err := symbolic.NewSum(terms...)
		return located(fn, err, path)
	case n.Max != nil:
		terms, err := b.buildList(n.Max, path+".max")
		if err != nil {
			return nil, err
		}
		fn, err := symbolic.NewMax(terms...)
		return located(fn, err, path)
	case n.DependentSum != nil:
		x, y, err := b.buildPair(n.DependentSum, path+".dependent_sum")
		if err != nil {
			return nil, err
		}
		fn, err := symbolic.DependentSum(x, y, b.ids.Next())
		return located(fn, err, path)
	default:
		x, y, err := b.buildPair(n.DependentMax, path+".dependent_max")
		if err != nil {
			return nil, err
		}
		fn, err := symbolic.DependentMax(x, y, b.ids.Next())
		return located(fn, err, path)
	}
}

func (b *builder) buildScaled(s *ScaledSpec, path string) (symbolic.Function, error) {
	if s.Hoelder <= 0 {
		return nil, fmt.Errorf("%w: %s: hoelder id %d must be positive", symbolic.ErrBadInitialization, path, s.Hoelder)
	}
	var useP bool
	switch strings.ToLower(s.Part) {
	case "", "p":
		useP = true
	case "q":
		useP = false
	default:
		return nil, fmt.Errorf("%w: %s: part %q is neither p nor q", symbolic.ErrBadInitialization, path, s.Part)
	}
	of, err := b.build(s.Of, path+".scaled")
	if err != nil {
		return nil, err
	}
	fn, err := symbolic.NewScaled(of, symbolic.HoelderID(s.Hoelder), useP)
	return located(fn, err, path)
}

func (b *builder) buildList(nodes []Node, path string) ([]symbolic.Function, error) {
	terms := make([]symbolic.Function, len(nodes))
	for i := range nodes {
		fn, err := b.build(&nodes[i], fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		terms[i] = fn
	}
	return terms, nil
}

func (b *builder) buildPair(nodes []Node, path string) (symbolic.Function, symbolic.Function, error) {
	if len(nodes) != 2 {
		return nil, nil, fmt.Errorf("%w: %s: needs exactly two operands, has %d", symbolic.ErrBadInitialization, path, len(nodes))
	}
	terms, err := b.buildList(nodes, path)
	if err != nil {
		return nil, nil, err
	}
	return terms[0], terms[1], nil
}

func (n *Node) kinds() []string {
	var k []string
	if n.Constant != nil {
		k = append(k, "constant")
	}
	if n.Affine != nil {
		k = append(k, "affine")
	}
	if n.Scaled != nil {
		k = append(k, "scaled")
	}
	if n.Sum != nil {
		k = append(k, "sum")
	}
	if n.Max != nil {
		k = append(k, "max")
	}
	if n.DependentSum != nil {
		k = append(k, "dependent_sum")
	}
	if n.DependentMax != nil {
		k = append(k, "dependent_max")
	}
	return k
}

// located adds the node path to construction errors.
func located(fn symbolic.Function, err error, path string) (symbolic.Function, error) {
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fn, nil
}
