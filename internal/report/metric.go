package report

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindInteger ValueKind = iota
	KindFloat
	KindText
	KindBoolean
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

func parseValueKind(s string) (ValueKind, error) {
	for k := KindInteger; k <= KindList; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown metric value kind %q", s)
}

// Value is a metric value of exactly one kind. The zero Value is integer 0.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
	b    bool
	list []string
}

func Int(v int64) Value         { return Value{kind: KindInteger, i: v} }
func Float(v float64) Value     { return Value{kind: KindFloat, f: v} }
func Text(v string) Value       { return Value{kind: KindText, s: v} }
func Bool(v bool) Value         { return Value{kind: KindBoolean, b: v} }
func List(v ...string) Value    { return Value{kind: KindList, list: append([]string(nil), v...)} }
func (v Value) Kind() ValueKind { return v.kind }

// Number returns the value as float64 for integer and float kinds.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInteger:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', 2, 64)
	case KindText:
		return v.s
	case KindBoolean:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return ""
	}
}

type wireValue struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.kind {
	case KindInteger:
		payload = v.i
	case KindFloat:
		payload = v.f
	case KindText:
		payload = v.s
	case KindBoolean:
		payload = v.b
	case KindList:
		list := v.list
		if list == nil {
			list = []string{}
		}
		payload = list
	default:
		return nil, fmt.Errorf("invalid metric value kind %d", int(v.kind))
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Kind: v.kind.String(), Value: raw})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decoding metric value: %w", err)
	}
	kind, err := parseValueKind(w.Kind)
	if err != nil {
		return err
	}
	out := Value{kind: kind}
	switch kind {
	case KindInteger:
		err = json.Unmarshal(w.Value, &out.i)
	case KindFloat:
		err = json.Unmarshal(w.Value, &out.f)
	case KindText:
		err = json.Unmarshal(w.Value, &out.s)
	case KindBoolean:
		err = json.Unmarshal(w.Value, &out.b)
	case KindList:
		err = json.Unmarshal(w.Value, &out.list)
	}
	if err != nil {
		return fmt.Errorf("decoding %s metric value: %w", kind, err)
	}
	*v = out
	return nil
}

// Threshold carries no polarity: higher values are always worse. Probes whose
// metric gets worse as it falls classify a negated value against negated bounds.
type Threshold struct {
	Warning  float64 `json:"warning" yaml:"warning"`
	Critical float64 `json:"critical" yaml:"critical"`
}

func (t Threshold) Classify(v float64) Severity {
	switch {
	case v >= t.Critical:
		return Critical
	case v >= t.Warning:
		return Warning
	default:
		return Ok
	}
}

func (t Threshold) Validate() error {
	if t.Warning >= t.Critical {
		return fmt.Errorf("warning threshold %.2f must be below critical %.2f", t.Warning, t.Critical)
	}
	return nil
}

type Metric struct {
	Name      string     `json:"name"`
	Value     Value      `json:"value"`
	Unit      string     `json:"unit,omitempty"`
	Threshold *Threshold `json:"threshold,omitempty"`
}

// Severity is the classification of a numeric metric against its threshold.
// ok is false when the metric has no threshold or is not numeric.
func (m Metric) Severity() (sev Severity, ok bool) {
	if m.Threshold == nil {
		return Ok, false
	}
	v, numeric := m.Value.Number()
	if !numeric {
		return Ok, false
	}
	return m.Threshold.Classify(v), true
}
