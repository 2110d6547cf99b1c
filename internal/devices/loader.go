package devices

import (
	"fmt"
	"os"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// deviceNamespace scopes the name-based device IDs so that the same
// inventory name always maps to the same ID across restarts.
var deviceNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/KevinKickass/airmedia-bridge/devices"))

// DeviceID returns the stable ID of the inventory device called name.
func DeviceID(name string) uuid.UUID {
	return uuid.NewSHA1(deviceNamespace, []byte(name))
}

type inventoryFile struct {
	Devices []types.DeviceDefinition `yaml:"devices"`
}

type InventoryLoader struct {
	validator *Validator
	getenv    func(string) string
}

func NewInventoryLoader() (*InventoryLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &InventoryLoader{
		validator: validator,
		getenv:    os.Getenv,
	}, nil
}

// Load reads the inventory file at path.
func (l *InventoryLoader) Load(path string) ([]types.DeviceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	defs, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", path, err)
	}
	return defs, nil
}

// Parse validates and decodes an inventory document. Passwords given as
// password_env are resolved here for enabled devices.
func (l *InventoryLoader) Parse(data []byte) ([]types.DeviceDefinition, error) {
	if err := l.validator.ValidateInventory(data); err != nil {
		return nil, err
	}

	var inv inventoryFile
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to decode inventory: %w", err)
	}

	seen := make(map[string]bool, len(inv.Devices))
	for i := range inv.Devices {
		def := &inv.Devices[i]
		if seen[def.Name] {
			return nil, fmt.Errorf("duplicate device name %q", def.Name)
		}
		seen[def.Name] = true

		if def.PasswordEnv != "" && def.IsEnabled() {
			password := l.getenv(def.PasswordEnv)
			if password == "" {
				return nil, fmt.Errorf("device %q: environment variable %s is empty", def.Name, def.PasswordEnv)
			}
			def.Connection.Password = password
		}
	}

	return inv.Devices, nil
}
