// Package nvdb holds the input-side data model for Swedish national road
// database (NVDB) segment records: the schema-free property map and the raw
// segment record handed to the conversion pipeline.
package nvdb

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the variants a property value can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindBool
	KindString
)

// Value is a tagged variant for one NVDB attribute value. Attribute columns
// are schema-free at the value level: the same column may arrive as integer,
// float, boolean or string depending on the upstream exporter.
type Value struct {
	kind Kind
	i    int64
	f    float64
	b    bool
	s    string
}

func Null() Value { return Value{kind: KindNull} }

func Int(v int64) Value { return Value{kind: KindInt, i: v} }

func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

func String(v string) Value { return Value{kind: KindString, s: v} }

// Kind returns the variant discriminator.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is absent.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int64 coerces the value to an integer. Booleans map to 0/1, floats
// truncate, numeric strings parse. Returns false for anything else.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		return int64(v.f), true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Float64 coerces the value to a float. Malformed strings yield false
// rather than zero.
func (v Value) Float64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Text renders the value as a trimmed string. Null renders empty.
func (v Value) Text() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return strings.TrimSpace(v.s)
	}
	return ""
}

// Truthy reports whether the value counts as a set boolean flag.
// "1", 1, 1.0 and true are all equivalent. Any other nonzero number and any
// non-empty string other than "0", "false" and "NA" also count as set; zero,
// false, null and those strings do not.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		s := strings.TrimSpace(v.s)
		return s != "" && s != "0" && !strings.EqualFold(s, "false") && !strings.EqualFold(s, "NA")
	}
	return false
}

// Properties is the attribute map of one segment.
type Properties map[string]Value

// Int64 returns the coerced integer value of a column, or ok=false when the
// column is absent, null, or not coercible.
func (p Properties) Int64(col string) (int64, bool) {
	v, found := p[col]
	if !found || v.IsNull() {
		return 0, false
	}
	return v.Int64()
}

// Float64 returns the coerced float value of a column.
func (p Properties) Float64(col string) (float64, bool) {
	v, found := p[col]
	if !found || v.IsNull() {
		return 0, false
	}
	return v.Float64()
}

// Text returns the trimmed string rendering of a column, or "" when absent.
// The NVDB exporters use "NA" for missing text; it is treated as absent.
func (p Properties) Text(col string) string {
	v, found := p[col]
	if !found {
		return ""
	}
	s := v.Text()
	if s == "NA" {
		return ""
	}
	return s
}

// Flag reports whether a boolean column is set. ESRI file-geodatabase
// exports encode true as -1 for the known boolean columns; Normalize maps
// those to 1 before this is consulted, but -1 still counts as set here.
func (p Properties) Flag(col string) bool {
	v, found := p[col]
	if !found || v.IsNull() {
		return false
	}
	if n, ok := v.Int64(); ok {
		return n != 0
	}
	return v.Truthy()
}

// booleanColumns is the set of NVDB GDB columns that use the ESRI -1 == true
// convention.
var booleanColumns = map[string]bool{
	"F_ForbudTrafik": true, "B_ForbudTrafik": true,
	"F_ForbjudenFardriktning": true, "B_ForbjudenFardriktning": true,
	"F_Cirkulationsplats": true, "B_Cirkulationsplats": true,
	"TattbebyggtOmrade": true,
	"Farjeled":          true,
	"Motorvag":          true, "Motortrafikled": true,
	"GCM_belyst": true, "GCM_passage": true,
	"F_Omkorningsforbud": true, "B_Omkorningsforbud": true,
	"L_Gagata": true, "R_Gagata": true,
	"L_Gangfartsomrade": true, "R_Gangfartsomrade": true,
	"Miljozon":               true,
	"C_Rekbilvagcykeltrafik": true,
	"Rastplats":              true,
	"L_Rastficka_2":          true, "R_Rastficka_2": true,
	"F_ATK_Matplats": true, "B_ATK_Matplats": true,
}

// Normalize rewrites GDB-style boolean encodings in place: -1 becomes 1 for
// the known boolean columns, whether delivered as integer or float.
func (p Properties) Normalize() {
	for col, v := range p {
		if !booleanColumns[col] {
			continue
		}
		if n, ok := v.Int64(); ok && n == -1 {
			p[col] = Int(1)
		}
	}
}

// FromJSON decodes a JSON object into a property map, preserving the
// int/float distinction through json.Number.
func FromJSON(data []byte) (Properties, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	props := make(Properties, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case nil:
			props[k] = Null()
		case bool:
			props[k] = Bool(t)
		case string:
			props[k] = String(t)
		case json.Number:
			if n, err := t.Int64(); err == nil {
				props[k] = Int(n)
			} else if f, err := t.Float64(); err == nil {
				props[k] = Float(f)
			}
		}
	}
	return props, nil
}

// ToJSON renders a property map as a JSON object. Used by the columnar
// cache; round-trips through FromJSON.
func (p Properties) ToJSON() ([]byte, error) {
	raw := make(map[string]any, len(p))
	for k, v := range p {
		switch v.kind {
		case KindNull:
			raw[k] = nil
		case KindInt:
			raw[k] = v.i
		case KindFloat:
			raw[k] = v.f
		case KindBool:
			raw[k] = v.b
		case KindString:
			raw[k] = v.s
		}
	}
	return json.Marshal(raw)
}
