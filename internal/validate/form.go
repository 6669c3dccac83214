package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"fieldops-backend/internal/model"
)

// ErrInvalidForm wraps every validation failure so callers can distinguish
// bad input from backend errors.
var ErrInvalidForm = errors.New("invalid form")

// ONU serials look like "FHTT1234" or "FHTT10C2A5B0": a 4-letter vendor
// prefix followed by hex digits.
var serialRe = regexp.MustCompile(`^[A-Z]{4}[0-9A-F]{4,12}$`)

// requiredFields lists the form fields each operation type must carry.
// Validation is presence/format level only; field meaning is left to the
// presentation layer.
var requiredFields = map[model.OperationType][]string{
	model.TypeInstallation: {"cliente", "endereco", "plano"},
	model.TypeCTO:          {"cto", "porta"},
	model.TypeRMA:          {"serial", "modelo"},
}

// Form checks the form data submitted for an operation of the given type.
func Form(typ model.OperationType, data map[string]any) error {
	if !model.KnownType(typ) {
		return fmt.Errorf("%w: unknown operation type %q", ErrInvalidForm, typ)
	}

	for _, field := range requiredFields[typ] {
		raw, present := data[field]
		if !present {
			return fmt.Errorf("%w: missing field %q", ErrInvalidForm, field)
		}
		s, isString := raw.(string)
		if !isString || strings.TrimSpace(s) == "" {
			return fmt.Errorf("%w: field %q must be a non-empty string", ErrInvalidForm, field)
		}
	}

	if typ == model.TypeRMA {
		serial := strings.ToUpper(strings.TrimSpace(data["serial"].(string)))
		if !serialRe.MatchString(serial) {
			return fmt.Errorf("%w: serial %q is not a valid ONU serial", ErrInvalidForm, data["serial"])
		}
	}
	return nil
}
