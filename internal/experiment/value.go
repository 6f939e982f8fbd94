package experiment

import (
	"fmt"
	"strings"
)

// Value is one configuration value: a string, an integer, a bool, or an
// ordered sequence of strings. The closed set of kinds keeps fingerprint
// rendering deterministic.
type Value struct {
	kind valueKind
	str  string
	num  int
	flag bool
	seq  []string
}

type valueKind int

const (
	stringValue valueKind = iota
	intValue
	boolValue
	seqValue
)

// String wraps a string value.
func String(s string) Value { return Value{kind: stringValue, str: s} }

// Int wraps an integer value.
func Int(i int) Value { return Value{kind: intValue, num: i} }

// Bool wraps a boolean value.
func Bool(b bool) Value { return Value{kind: boolValue, flag: b} }

// Strings wraps an ordered sequence of strings. Order within the sequence is
// significant and preserved.
func Strings(ss ...string) Value { return Value{kind: seqValue, seq: ss} }

// Render produces the canonical textual form of the value. Sequences join
// their elements with "|"; ordering within a sequence is significant.
func (v Value) Render() string {
	switch v.kind {
	case stringValue:
		return v.str
	case intValue:
		return fmt.Sprintf("%d", v.num)
	case boolValue:
		return fmt.Sprintf("%v", v.flag)
	case seqValue:
		return strings.Join(v.seq, "|")
	}
	panic(fmt.Sprintf("experiment: unknown value kind %d", v.kind))
}

// Param is one named configuration value.
type Param struct {
	Key   string
	Value Value
}
