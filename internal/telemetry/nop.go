package telemetry

import "context"

// NopEmitter drops events. Used when no telemetry endpoint is configured.
type NopEmitter struct{}

func (NopEmitter) EmitVisitCompleted(ctx context.Context, ev VisitEvent) error {
	return nil
}
