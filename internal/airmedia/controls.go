package airmedia

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/KevinKickass/airmedia-bridge/internal/types"
	"go.uber.org/zap"
)

const (
	RebootProperty          = "Device#reboot"
	SynchroniseTimeProperty = "Device#synchroniseTime"

	rebootURI      = "Device/DeviceOperations"
	systemClockURI = "Device/SystemClock"
	rebootBody     = `{"Device":{"DeviceOperations":{"Reboot":true}}}`
	syncClockBody  = `{"Device":{"SystemClock":{"Sntp":{"ForceSynchronizationNow":true}}}}`
	controlGroup   = "Device#"
	idleValue      = "0"
)

type control struct {
	name         string
	label        string
	labelPressed string
	grace        time.Duration
}

var deviceControls = []control{
	{name: RebootProperty, label: "Reboot", labelPressed: "Rebooting...", grace: 10 * time.Second},
	{name: SynchroniseTimeProperty, label: "Synchronise Time", labelPressed: "Syncing now...", grace: 20 * time.Second},
}

func (c control) property(now time.Time) types.AdvancedControllableProperty {
	return types.AdvancedControllableProperty{
		Name:      c.name,
		Timestamp: now,
		Button: types.Button{
			Label:        c.label,
			LabelPressed: c.labelPressed,
			GracePeriod:  c.grace,
		},
		Value: idleValue,
	}
}

// ControlProperty runs one control. cp.Value is ignored by both controls.
// Unknown properties are logged and ignored.
func (a *Adapter) ControlProperty(ctx context.Context, cp types.ControllableProperty) error {
	switch canonicalProperty(cp.Property) {
	case RebootProperty:
		_, err := a.client.Post(ctx, rebootURI, rebootBody, a.headers(http.MethodPost, rebootURI))
		return err
	case SynchroniseTimeProperty:
		a.forceTimeSync(ctx)
		return nil
	default:
		a.logger.Warn("Control property is invalid", zap.String("property", cp.Property))
		return nil
	}
}

// ControlProperties runs cps in order and stops at the first failure.
func (a *Adapter) ControlProperties(ctx context.Context, cps []types.ControllableProperty) error {
	for _, cp := range cps {
		if err := a.ControlProperty(ctx, cp); err != nil {
			return err
		}
	}
	return nil
}

// forceTimeSync is fire-and-forget: the device answers the SNTP request only
// after any sensible timeout, so the outcome is never reported.
func (a *Adapter) forceTimeSync(ctx context.Context) {
	if _, err := a.client.Post(ctx, systemClockURI, syncClockBody, a.headers(http.MethodPost, systemClockURI)); err != nil {
		a.logger.Debug("Time sync response ignored", zap.Error(err))
	}
}

func canonicalProperty(name string) string {
	if name != "" && !strings.Contains(name, "#") {
		return controlGroup + name
	}
	return name
}
