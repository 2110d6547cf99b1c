package airmedia

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/device-info-v1.json
var deviceInfoSchemaJSON string

var (
	deviceInfoSchema     *jsonschema.Schema
	deviceInfoSchemaErr  error
	deviceInfoSchemaOnce sync.Once
)

func compiledDeviceInfoSchema() (*jsonschema.Schema, error) {
	deviceInfoSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("device-info-v1.json", strings.NewReader(deviceInfoSchemaJSON)); err != nil {
			deviceInfoSchemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		deviceInfoSchema, deviceInfoSchemaErr = compiler.Compile("device-info-v1.json")
	})
	return deviceInfoSchema, deviceInfoSchemaErr
}

// validateStructure checks the parts of the document the flattening cannot
// degrade gracefully: the input/output lists and their Ports.
func validateStructure(doc any) error {
	schema, err := compiledDeviceInfoSchema()
	if err != nil {
		return fmt.Errorf("failed to compile device schema: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			leaf := verr
			for len(leaf.Causes) > 0 {
				leaf = leaf.Causes[0]
			}
			return &types.ParseError{Path: leaf.InstanceLocation, Err: errors.New(leaf.Message)}
		}
		return &types.ParseError{Err: err}
	}
	return nil
}
