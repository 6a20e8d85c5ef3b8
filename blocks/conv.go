// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blocks

import (
	"math"
	"strings"

	"github.com/Knetic/govaluate"
)

// MaxChainDepth is the resolution bound on conversion chains.
const MaxChainDepth = 20

// Resolve walks the cc_ref links of the conversion rooted at addr and
// stores every referenced text and nested conversion inside cc, so that
// Apply never reads the file again. It detects reference cycles and
// enforces MaxChainDepth.
func (cc *Conversion) Resolve(data []byte, addr uint64) error {
	seen := make(map[uint64]bool)
	if addr != 0 {
		seen[addr] = true
	}
	return cc.resolve(data, seen, 0)
}

func (cc *Conversion) resolve(data []byte, seen map[uint64]bool, depth int) error {
	if depth > MaxChainDepth {
		return &ChainDepthError{Max: MaxChainDepth}
	}
	for i, ref := range cc.Ref {
		if ref == 0 {
			continue
		}
		if seen[ref] {
			return &ChainCycleError{Addr: ref}
		}
		if err := checkRegion(data, ref, HeaderSize); err != nil {
			return err
		}
		hdr, err := ParseHeader(data[ref:], "")
		if err != nil {
			return err
		}
		switch hdr.ID {
		case MagicTX, MagicMD:
			text, err := ReadText(data, ref)
			if err != nil {
				return err
			}
			if cc.Texts == nil {
				cc.Texts = make(map[int]string)
			}
			cc.Texts[i] = text

		case MagicCC:
			nested, err := ParseConversion(data[ref:])
			if err != nil {
				return err
			}
			seen[ref] = true
			err = nested.resolve(data, seen, depth+1)
			if err != nil {
				return err
			}
			delete(seen, ref)
			if cc.Nested == nil {
				cc.Nested = make(map[int]*Conversion)
			}
			cc.Nested[i] = nested
			if nested.NameTX != 0 {
				name, err := ReadText(data, nested.NameTX)
				if err != nil {
					return err
				}
				if name != "" {
					if cc.NestedNames == nil {
						cc.NestedNames = make(map[int]string)
					}
					cc.NestedNames[i] = name
				}
			}

		default:
			return &MagicError{Got: hdr.ID, Want: MagicTX}
		}
	}
	if cc.Type == Algebraic && cc.Formula == "" {
		if f, ok := cc.Texts[0]; ok {
			cc.Formula = f
		}
	}
	return nil
}

// Apply converts a raw decoded value to its physical form. The conversion
// must have been resolved first; Apply is pure.
func (cc *Conversion) Apply(v Value) (Value, error) {
	switch cc.Type {
	case Identity:
		return v, nil

	case Linear:
		raw, ok := v.Numeric()
		if !ok {
			return v, nil
		}
		if len(cc.Val) < 2 {
			return FloatValue(raw), nil
		}
		return FloatValue(cc.Val[0] + cc.Val[1]*raw), nil

	case Rational:
		raw, ok := v.Numeric()
		if !ok {
			return v, nil
		}
		if len(cc.Val) < 6 {
			return FloatValue(raw), nil
		}
		num := cc.Val[0]*raw*raw + cc.Val[1]*raw + cc.Val[2]
		den := cc.Val[3]*raw*raw + cc.Val[4]*raw + cc.Val[5]
		if math.Abs(den) <= epsilon {
			return FloatValue(raw), nil
		}
		return FloatValue(num / den), nil

	case Algebraic:
		raw, ok := v.Numeric()
		if !ok || cc.Formula == "" {
			return v, nil
		}
		expr, err := govaluate.NewEvaluableExpression(cc.Formula)
		if err != nil {
			return FloatValue(raw), nil
		}
		res, err := expr.Evaluate(map[string]interface{}{"X": raw})
		if err != nil {
			return FloatValue(raw), nil
		}
		f, ok := res.(float64)
		if !ok {
			return FloatValue(raw), nil
		}
		return FloatValue(f), nil

	case TableLookupInterp:
		raw, ok := v.Numeric()
		if !ok {
			return v, nil
		}
		if phys, ok := lookupTable(cc.Val, raw, true); ok {
			return FloatValue(phys), nil
		}
		return FloatValue(raw), nil

	case TableLookupNoInterp:
		raw, ok := v.Numeric()
		if !ok {
			return v, nil
		}
		if phys, ok := lookupTable(cc.Val, raw, false); ok {
			return FloatValue(phys), nil
		}
		return FloatValue(raw), nil

	case RangeLookup:
		return cc.applyRangeLookup(v)

	case ValueToText:
		return cc.applyValueToText(v)

	case RangeToText:
		return cc.applyRangeToText(v)

	case TextToValue:
		return cc.applyTextToValue(v)

	case TextToText:
		return cc.applyTextToText(v)

	case BitfieldText:
		return cc.applyBitfieldText(v)
	}
	return v, nil
}

const epsilon = 2.220446049250313e-16

// lookupTable performs a (key, value) pair lookup over
// val = [k0, v0, k1, v1, ...], interpolating linearly when interp is set
// and picking the nearest key (tie to lower) otherwise. Inputs outside the
// table clamp to the boundary values.
func lookupTable(val []float64, raw float64, interp bool) (float64, bool) {
	if len(val) < 4 || len(val)%2 != 0 {
		return 0, false
	}
	n := len(val) / 2
	key := func(i int) float64 { return val[2*i] }
	out := func(i int) float64 { return val[2*i+1] }

	if raw <= key(0) {
		return out(0), true
	}
	if raw >= key(n-1) {
		return out(n - 1), true
	}
	for i := 0; i < n-1; i++ {
		k0, k1 := key(i), key(i+1)
		if raw < k0 || raw > k1 {
			continue
		}
		if interp {
			t := (raw - k0) / (k1 - k0)
			return out(i) + t*(out(i+1)-out(i)), true
		}
		if k1-raw < raw-k0 {
			return out(i + 1), true
		}
		return out(i), true
	}
	return 0, false
}

func (cc *Conversion) applyRangeLookup(v Value) (Value, error) {
	raw, ok := v.Numeric()
	if !ok {
		return v, nil
	}
	// integer inputs use an inclusive upper bound, floats exclusive.
	inclusive := v.IsInteger()
	val := cc.Val
	if len(val) < 4 || (len(val)-1)%3 != 0 {
		return FloatValue(raw), nil
	}
	n := (len(val) - 1) / 3
	for i := 0; i < n; i++ {
		lo, hi, phys := val[3*i], val[3*i+1], val[3*i+2]
		if inclusive {
			if raw >= lo && raw <= hi {
				return FloatValue(phys), nil
			}
		} else {
			if raw >= lo && raw < hi {
				return FloatValue(phys), nil
			}
		}
	}
	return FloatValue(val[3*n]), nil
}

// rangeToTextIndex returns the first i with raw in [val[2i], val[2i+1]],
// or n (the default index) when no range matches.
func rangeToTextIndex(val []float64, raw float64, inclusive bool) int {
	if len(val) < 2 || len(val)%2 != 0 {
		return 0
	}
	n := len(val) / 2
	for i := 0; i < n; i++ {
		lo, hi := val[2*i], val[2*i+1]
		if inclusive {
			if raw >= lo && raw <= hi {
				return i
			}
		} else {
			if raw >= lo && raw < hi {
				return i
			}
		}
	}
	return n
}

// refResult resolves the cc_ref at idx to a Value: a text yields a string,
// a nested conversion is applied to v.
func (cc *Conversion) refResult(idx int, v Value) (Value, error) {
	if idx >= len(cc.Ref) || cc.Ref[idx] == 0 {
		return Unknown, nil
	}
	if text, ok := cc.Texts[idx]; ok {
		return StringValue(text), nil
	}
	if nested, ok := cc.Nested[idx]; ok {
		return nested.Apply(v)
	}
	return Unknown, nil
}

func (cc *Conversion) applyValueToText(v Value) (Value, error) {
	raw, ok := v.Numeric()
	if !ok {
		return v, nil
	}
	idx := len(cc.Val)
	for i, k := range cc.Val {
		if k == raw {
			idx = i
			break
		}
	}
	return cc.refResult(idx, v)
}

func (cc *Conversion) applyRangeToText(v Value) (Value, error) {
	raw, ok := v.Numeric()
	if !ok {
		return v, nil
	}
	idx := rangeToTextIndex(cc.Val, raw, v.IsInteger())
	return cc.refResult(idx, v)
}

func (cc *Conversion) applyTextToValue(v Value) (Value, error) {
	if v.Kind() != KindString {
		return v, nil
	}
	input := v.Str()
	n := len(cc.Ref)
	for i := 0; i < n; i++ {
		if cc.Ref[i] == 0 {
			continue
		}
		key, ok := cc.Texts[i]
		if !ok || key != input {
			continue
		}
		if i < len(cc.Val) {
			return FloatValue(cc.Val[i]), nil
		}
		return Unknown, nil
	}
	if len(cc.Val) > n {
		return FloatValue(cc.Val[n]), nil
	}
	return Unknown, nil
}

func (cc *Conversion) applyTextToText(v Value) (Value, error) {
	if v.Kind() != KindString {
		return v, nil
	}
	input := v.Str()
	pairs := 0
	if len(cc.Ref) > 0 {
		pairs = (len(cc.Ref) - 1) / 2
	}
	for i := 0; i < pairs; i++ {
		key, ok := cc.Texts[2*i]
		if !ok || key != input {
			continue
		}
		if cc.Ref[2*i+1] == 0 {
			return v, nil
		}
		if out, ok := cc.Texts[2*i+1]; ok {
			return StringValue(out), nil
		}
		return v, nil
	}
	if 2*pairs >= len(cc.Ref) || cc.Ref[2*pairs] == 0 {
		return v, nil
	}
	if out, ok := cc.Texts[2*pairs]; ok {
		return StringValue(out), nil
	}
	return v, nil
}

func (cc *Conversion) applyBitfieldText(v Value) (Value, error) {
	var raw uint64
	switch v.Kind() {
	case KindUnsigned:
		raw = v.Uint()
	case KindSigned:
		raw = uint64(v.Int())
	default:
		return v, nil
	}
	var parts []string
	for i := range cc.Ref {
		if i >= len(cc.Val) {
			break
		}
		// masks are stashed as f64 bit patterns.
		mask := math.Float64bits(cc.Val[i])
		nested, ok := cc.Nested[i]
		if !ok {
			continue
		}
		res, err := nested.Apply(UnsignedValue(raw & mask))
		if err != nil {
			return Unknown, err
		}
		if res.Kind() != KindString {
			continue
		}
		part := res.Str()
		if name, ok := cc.NestedNames[i]; ok {
			part = name + " = " + part
		}
		parts = append(parts, part)
	}
	return StringValue(strings.Join(parts, "|")), nil
}
