package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Float is a float64 that survives JSON round trips when it is not finite.
// Infinite and NaN values are written as the strings "+Inf", "-Inf" and
// "NaN", which is how overloaded servers and output bounds are reported.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid float %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// HoelderValue is the stored form of one Hölder pair.
type HoelderValue struct {
	ID int     `json:"id"`
	P  float64 `json:"p"`
	Q  float64 `json:"q"`
}

// Run modes.
const (
	ModeBound    = "bound"
	ModeReverse  = "reverse"
	ModeMinimize = "minimize"
)

// Record is the persisted result of one run.
type Record struct {
	RunID string `json:"runId"`
	Model string `json:"model"`
	Mode  string `json:"mode"`

	// BoundType is empty for minimize runs.
	BoundType string `json:"boundType,omitempty"`

	// Target is the bound value for bound runs and the violation
	// probability for reverse runs.
	Target float64 `json:"target,omitempty"`

	Strategy           string  `json:"strategy"`
	ThetaGranularity   float64 `json:"thetaGranularity,omitempty"`
	HoelderGranularity float64 `json:"hoelderGranularity,omitempty"`

	Cost    Float          `json:"cost"`
	Theta   float64        `json:"theta"`
	Hoelder []HoelderValue `json:"hoelder,omitempty"`

	Iterations  int  `json:"iterations"`
	Evaluations int  `json:"evaluations"`
	Capped      bool `json:"capped,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// RunInfo is the summary shown when listing runs.
type RunInfo struct {
	RunID     string    `json:"runId"`
	Model     string    `json:"model"`
	Mode      string    `json:"mode"`
	BoundType string    `json:"boundType,omitempty"`
	Cost      Float     `json:"cost"`
	Timestamp time.Time `json:"timestamp"`

	// Size is the disk usage of the run directory, filled in by ListRuns.
	Size int64 `json:"size,omitempty"`
}

// ToInfo extracts the listing summary.
func (r *Record) ToInfo() RunInfo {
	return RunInfo{
		RunID:     r.RunID,
		Model:     r.Model,
		Mode:      r.Mode,
		BoundType: r.BoundType,
		Cost:      r.Cost,
		Timestamp: r.Timestamp,
	}
}

// ValidationError reports an inconsistent record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid record: %s: %s", e.Field, e.Message)
}

// Validate checks the fields every record must carry.
func (r *Record) Validate() error {
	if err := CheckRunID(r.RunID); err != nil {
		return &ValidationError{Field: "runId", Message: err.Error()}
	}
	switch r.Mode {
	case ModeBound, ModeReverse:
		if r.BoundType == "" {
			return &ValidationError{Field: "boundType", Message: "required for " + r.Mode + " runs"}
		}
	case ModeMinimize:
	default:
		return &ValidationError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", r.Mode)}
	}
	if r.Iterations < 0 || r.Evaluations < 0 {
		return &ValidationError{Field: "iterations", Message: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "cannot be zero"}
	}
	seen := make(map[int]bool, len(r.Hoelder))
	for _, h := range r.Hoelder {
		if seen[h.ID] {
			return &ValidationError{Field: "hoelder", Message: fmt.Sprintf("duplicate id %d", h.ID)}
		}
		seen[h.ID] = true
	}
	return nil
}
