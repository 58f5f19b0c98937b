package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/sncbound/internal/symbolic"
)

const twoFlows = `
name: two flows
theta_max: 3
sigma:
  dependent_sum:
    - constant: 0.5
    - scaled:
        hoelder: 4
        part: q
        of:
          affine: {slope: 0.1, intercept: 0.2, limit: 10}
rho:
  max:
    - affine: {slope: 0.2, intercept: -1, limit: 4}
    - scaled: {hoelder: 4, of: {constant: -2}}
`

func TestParseTwoFlows(t *testing.T) {
	m, err := Parse([]byte(twoFlows))
	require.NoError(t, err)

	assert.Equal(t, "two flows", m.Name)
	assert.Equal(t, 3.0, m.ThetaMax)
	require.NotNil(t, m.Arrival)
	assert.Nil(t, m.Objective)

	// Hölder 4 is explicit; the dependent sum allocates the next id.
	assert.Equal(t, []symbolic.HoelderID{4, 5}, m.Arrival.Parameters().Sorted())
	assert.Equal(t, "sum(scaled(c(0.5),5),scaled(scaled(affine(0.1*t+0.2,<10),4,q),5,q))", m.Arrival.Sigma.String())
	assert.Equal(t, "max(affine(0.2*t-1,<4),scaled(c(-2),4))", m.Arrival.Rho.String())

	params := symbolic.NewAssignment(m.Arrival.Parameters())
	p, err := m.Arrival.Evaluate(0.5, 0, 1, params)
	require.NoError(t, err)
	assert.Greater(t, p, 0.0)
}

func TestParseObjectiveOnly(t *testing.T) {
	m, err := Parse([]byte("objective:\n  affine: {slope: 1, intercept: 0}\n"))
	require.NoError(t, err)

	assert.Nil(t, m.Arrival)
	require.NotNil(t, m.Objective)
	assert.True(t, math.IsInf(m.ThetaMax, 1))

	limit, err := symbolic.MaxTheta(m.Objective, nil)
	require.NoError(t, err)
	assert.True(t, math.IsInf(limit, 1), "affine without limit is unbounded")
}

func TestParseRejectsBadModels(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", "name: nothing\n"},
		{"sigma without rho", "sigma: {constant: 1}\n"},
		{"two kinds", "objective: {constant: 1, affine: {slope: 1}}\n"},
		{"no kind", "objective: {}\n"},
		{"bad part", "objective: {scaled: {hoelder: 1, part: r, of: {constant: 1}}}\n"},
		{"zero hoelder", "objective: {scaled: {hoelder: 0, of: {constant: 1}}}\n"},
		{"scaled without operand", "objective: {scaled: {hoelder: 1}}\n"},
		{"dependent arity", "objective: {dependent_sum: [{constant: 1}]}\n"},
		{"negative theta_max", "theta_max: -1\nobjective: {constant: 1}\n"},
		{"zero affine limit", "objective: {affine: {slope: 1, limit: 0}}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, symbolic.ErrBadInitialization)
		})
	}
}

func TestParseRejectsInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("sigma: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(twoFlows), 0644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "two flows", m.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
