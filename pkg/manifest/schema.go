package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"

	schemasassets "github.com/3leaps/nimbuswalk/internal/assets/schemas"
)

// ErrSchemaNotFound indicates the embedded schema is missing.
var ErrSchemaNotFound = errors.New("manifest schema not found")

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// ValidateSchema checks m against the published walk manifest JSON schema.
func ValidateSchema(m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks raw JSON against the walk manifest schema, including
// rejection of unknown fields. All failures are reported as ValidationErrors
// keyed by JSON pointer.
func ValidateRaw(jsonData []byte) error {
	v, err := getValidator()
	if err != nil {
		return err
	}

	diags, err := v.ValidateJSON(jsonData)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	var errs ValidationErrors
	for _, d := range diags {
		if d.Severity == schema.SeverityError {
			errs = append(errs, ValidationError{Path: d.Pointer, Message: d.Message})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// getValidator compiles the embedded schema once.
func getValidator() (*schema.Validator, error) {
	validatorOnce.Do(func() {
		if len(schemasassets.WalkManifestSchema) == 0 {
			validatorErr = fmt.Errorf("%w: embedded walk-manifest schema is empty", ErrSchemaNotFound)
			return
		}
		validator, validatorErr = schema.NewValidator(schemasassets.WalkManifestSchema)
		if validatorErr != nil {
			validatorErr = fmt.Errorf("failed to compile manifest schema: %w", validatorErr)
		}
	})
	return validator, validatorErr
}
