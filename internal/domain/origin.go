package domain

import "context"

type deviceIDKey struct{}

// WithDeviceID tags ctx with the device a request came from.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey{}, deviceID)
}

// DeviceIDFrom returns the originating device, or "" when unknown.
func DeviceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(deviceIDKey{}).(string)
	return id
}
