package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ReturnMethod identifies the formula that produced a window's value
type ReturnMethod string

const (
	MethodNone        ReturnMethod = ""
	MethodAbsolute    ReturnMethod = "absolute"
	MethodCAGR        ReturnMethod = "cagr"
	MethodSIPAbsolute ReturnMethod = "sip_absolute"
	MethodXIRR        ReturnMethod = "xirr"
)

// Reasons for an undefined window value
const (
	ReasonNoData              = "no_data"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonNoContributions     = "no_contributions"
	ReasonNoConvergence       = "no_convergence"
	ReasonInvalidValue        = "invalid_value"
	ReasonFailed              = "failed"
)

// WindowReturn is the result for one lookback window.
// A nil Value means undefined and is never reported as zero.
type WindowReturn struct {
	Value        *float64     `json:"value"`
	Label        string       `json:"label"`
	Method       ReturnMethod `json:"method,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	LookbackDays int          `json:"lookback_days"`
}

// Defined reports whether the window has a numeric value
func (w WindowReturn) Defined() bool {
	return w.Value != nil
}

// Returns is an ordered list of window results. It serializes as a JSON
// object keyed by window label in catalog order, with null for undefined.
type Returns []WindowReturn

// MarshalJSON implements json.Marshaler
func (r Returns) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, w := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(w.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if w.Value == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(*w.Value)
		if err != nil {
			return nil, fmt.Errorf("window %s: %w", w.Label, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, preserving key order
func (r *Returns) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("returns: expected object, got %v", tok)
	}

	out := Returns{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		label, ok := tok.(string)
		if !ok {
			return fmt.Errorf("returns: expected label, got %v", tok)
		}
		var v *float64
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("returns: window %s: %w", label, err)
		}
		out = append(out, WindowReturn{Label: label, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = out
	return nil
}

// Get returns the value for a window label
func (r Returns) Get(label string) (*float64, bool) {
	for _, w := range r {
		if w.Label == label {
			return w.Value, true
		}
	}
	return nil, false
}

// ReturnProfile is the per-window return profile of one valuation series
type ReturnProfile struct {
	FirstDate   time.Time    `json:"first_date"`
	LastDate    time.Time    `json:"last_date"`
	Methodology Methodology  `json:"methodology"`
	Windows     Returns      `json:"returns"`
	Splits      []SplitEvent `json:"splits,omitempty"`
	Points      int          `json:"points"`
}

// Details returns the window results with method and reason, as a plain slice
// (serializes as an array rather than the label-keyed object).
func (p ReturnProfile) Details() []WindowReturn {
	out := make([]WindowReturn, len(p.Windows))
	copy(out, p.Windows)
	return out
}

// Get returns the value for a window label
func (p ReturnProfile) Get(label string) (*float64, bool) {
	return p.Windows.Get(label)
}

// UndefinedProfile returns a profile where every window is undefined
func UndefinedProfile(windows []ReturnWindow, methodology Methodology, reason string) ReturnProfile {
	out := make(Returns, len(windows))
	for i, w := range windows {
		out[i] = WindowReturn{Label: w.Label, LookbackDays: w.LookbackDays, Reason: reason}
	}
	return ReturnProfile{Methodology: methodology, Windows: out}
}
