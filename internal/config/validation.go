package config

import (
	"fmt"
	"strings"
)

// InvalidValue is a config key holding an unsupported value.
type InvalidValue struct {
	Key   string
	Value string
	Valid []string
}

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidValues  []InvalidValue
	InvalidSymbols []string
	UnknownSymbols []string
	Missing        []string
	OutOfRange     []string

	validSymbols []string
}

func (e *ValidationErrors) add(key, value string, valid []string) {
	e.InvalidValues = append(e.InvalidValues, InvalidValue{Key: key, Value: value, Valid: valid})
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidValues) > 0 || len(e.InvalidSymbols) > 0 || len(e.UnknownSymbols) > 0 ||
		len(e.Missing) > 0 || len(e.OutOfRange) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")

	if len(e.InvalidValues) > 0 {
		sb.WriteString("\nInvalid values:\n")
		for _, iv := range e.InvalidValues {
			sb.WriteString(fmt.Sprintf("  - %s=%q (must be one of: %s)\n", iv.Key, iv.Value, strings.Join(iv.Valid, ", ")))
		}
	}

	if len(e.InvalidSymbols) > 0 {
		sb.WriteString("\nInvalid symbol entries (strike_step and reference_price must be positive):\n")
		for _, s := range e.InvalidSymbols {
			sb.WriteString(fmt.Sprintf("  - %s\n", s))
		}
	}

	if len(e.UnknownSymbols) > 0 {
		sb.WriteString("\nUnknown symbols:\n")
		for _, s := range e.UnknownSymbols {
			sb.WriteString(fmt.Sprintf("  - %s\n", s))
		}
		sb.WriteString(fmt.Sprintf("\nValid symbols: %s\n", strings.Join(e.validSymbols, ", ")))
	}

	if len(e.Missing) > 0 {
		sb.WriteString("\nMissing:\n")
		for _, m := range e.Missing {
			sb.WriteString(fmt.Sprintf("  - %s\n", m))
		}
	}

	if len(e.OutOfRange) > 0 {
		sb.WriteString("\nOut of range:\n")
		for _, m := range e.OutOfRange {
			sb.WriteString(fmt.Sprintf("  - %s\n", m))
		}
	}

	return sb.String()
}

// ValidateSymbols checks requested symbols against the table, upper-casing
// them in place.
func ValidateSymbols(requested []string, table Symbols) error {
	errs := &ValidationErrors{validSymbols: table.Names()}
	for i, name := range requested {
		sym, err := table.Lookup(name)
		if err != nil {
			errs.UnknownSymbols = append(errs.UnknownSymbols, name)
			continue
		}
		requested[i] = sym.Name
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
