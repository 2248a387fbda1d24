// Package quantity normalizes Kubernetes resource quantity strings into
// integer base units: millicores for CPU and bytes for memory.
package quantity

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/inf.v0"
	"k8s.io/apimachinery/pkg/api/resource"
)

// Quantity is a resource amount in its normalized base unit.
type Quantity int64

// ErrInvalidQuantity is returned for strings that match no quantity grammar.
var ErrInvalidQuantity = errors.New("invalid quantity")

// InvalidQuantityError carries the offending raw value.
type InvalidQuantityError struct {
	Kind string // "cpu" or "memory"
	Raw  string
	Err  error
}

func (e *InvalidQuantityError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid %s quantity %q: %v", e.Kind, e.Raw, e.Err)
	}
	return fmt.Sprintf("invalid %s quantity %q", e.Kind, e.Raw)
}

func (e *InvalidQuantityError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidQuantity}
	}
	return []error{ErrInvalidQuantity, e.Err}
}

// kubectl prints <none> for unset columns.
const nonePlaceholder = "<none>"

// resource.ParseQuantity does not accept an exponent followed by a suffix,
// so "1.5e3Ki" is split and scaled here.
var scientificWithSuffix = regexp.MustCompile(`^([+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)[eE][+-]?[0-9]+)(Ki|Mi|Gi|Ti|Pi|Ei|k|M|G|T|P|E)$`)

// resource.ParseQuantity reads a bare suffix or sign ("Mi", "+") as zero.
var leadingNumber = regexp.MustCompile(`^[+-]?(?:[0-9]|\.[0-9])`)

var suffixFactors = map[string]int64{
	"Ki": 1 << 10,
	"Mi": 1 << 20,
	"Gi": 1 << 30,
	"Ti": 1 << 40,
	"Pi": 1 << 50,
	"Ei": 1 << 60,
	"k":  1e3,
	"M":  1e6,
	"G":  1e9,
	"T":  1e12,
	"P":  1e15,
	"E":  1e18,
}

var thousand = inf.NewDec(1000, 0)

// ParseCPU converts a CPU quantity ("2", "0.5", "250m", "1500u") to millicores.
// Sub-millicore values round half away from zero.
func ParseCPU(raw string) (Quantity, error) {
	value := strings.TrimSpace(raw)
	if isAbsent(value) {
		return 0, nil
	}
	if !leadingNumber.MatchString(value) {
		return 0, &InvalidQuantityError{Kind: "cpu", Raw: raw}
	}

	q, err := resource.ParseQuantity(value)
	if err != nil {
		return 0, &InvalidQuantityError{Kind: "cpu", Raw: raw, Err: err}
	}

	millis := new(inf.Dec).Mul(q.AsDec(), thousand)
	return toInt(millis, inf.RoundHalfUp, "cpu", raw)
}

// ParseMemory converts a memory quantity ("128Mi", "1G", "1e3", "1.5e3Ki")
// to bytes. Fractional bytes round down.
func ParseMemory(raw string) (Quantity, error) {
	value := strings.TrimSpace(raw)
	if isAbsent(value) {
		return 0, nil
	}
	if !leadingNumber.MatchString(value) {
		return 0, &InvalidQuantityError{Kind: "memory", Raw: raw}
	}

	q, err := resource.ParseQuantity(value)
	if err == nil {
		return toInt(q.AsDec(), inf.RoundFloor, "memory", raw)
	}

	m := scientificWithSuffix.FindStringSubmatch(value)
	if m == nil {
		return 0, &InvalidQuantityError{Kind: "memory", Raw: raw, Err: err}
	}
	mantissa, merr := resource.ParseQuantity(m[1])
	if merr != nil {
		return 0, &InvalidQuantityError{Kind: "memory", Raw: raw, Err: merr}
	}
	scaled := new(inf.Dec).Mul(mantissa.AsDec(), inf.NewDec(suffixFactors[m[2]], 0))
	return toInt(scaled, inf.RoundFloor, "memory", raw)
}

// MustParseCPU panics on invalid input. Intended for tests and constants.
func MustParseCPU(raw string) Quantity {
	q, err := ParseCPU(raw)
	if err != nil {
		panic(err)
	}
	return q
}

// MustParseMemory panics on invalid input. Intended for tests and constants.
func MustParseMemory(raw string) Quantity {
	q, err := ParseMemory(raw)
	if err != nil {
		panic(err)
	}
	return q
}

// FormatCPU renders millicores in canonical Kubernetes form ("250m", "2").
func FormatCPU(q Quantity) string {
	return resource.NewMilliQuantity(int64(q), resource.DecimalSI).String()
}

// FormatMemory renders bytes in canonical Kubernetes binary form ("128Mi").
func FormatMemory(q Quantity) string {
	return resource.NewQuantity(int64(q), resource.BinarySI).String()
}

// Int64 returns the raw base-unit value.
func (q Quantity) Int64() int64 { return int64(q) }

// IsZero reports whether no amount is set. Kubernetes treats an absent and an
// explicit zero request/limit the same way.
func (q Quantity) IsZero() bool { return q == 0 }

// Cores returns millicores as fractional cores.
func (q Quantity) Cores() float64 { return float64(q) / 1000 }

// MiB returns bytes as fractional mebibytes.
func (q Quantity) MiB() float64 { return float64(q) / (1024 * 1024) }

func isAbsent(value string) bool {
	return value == "" || value == nonePlaceholder
}

func toInt(d *inf.Dec, rounder inf.Rounder, kind, raw string) (Quantity, error) {
	rounded := new(inf.Dec).Round(d, 0, rounder)
	v, ok := rounded.Unscaled()
	if !ok {
		return 0, &InvalidQuantityError{Kind: kind, Raw: raw, Err: errors.New("value out of range")}
	}
	return Quantity(v), nil
}
