package router

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/forgehold/crucible/internal/execution"
	"github.com/forgehold/crucible/internal/loader"
)

// EventDelivery is the outcome of one event handler invocation.
type EventDelivery struct {
	InstallationID string
	Result         *execution.Result
}

// DispatchEvent fans an event out to every enabled installation whose
// manifest declares the event type. Handlers are invoked sequentially
// in installation order; one handler's failure never suppresses the
// rest.
func (r *Router) DispatchEvent(ctx context.Context, eventType string, eventData map[string]interface{}, scope loader.Scope) ([]EventDelivery, error) {
	installations, err := r.registry.ListInstallations(scope.CallerID, scope.ProjectID)
	if err != nil {
		return nil, execution.WrapError(execution.CodeRouting, err)
	}

	inputs := map[string]interface{}{
		"event": eventType,
		"data":  eventData,
	}

	var deliveries []EventDelivery
	for _, inst := range installations {
		if !inst.Enabled {
			continue
		}
		m, err := r.registry.GetManifest(inst.ItemID)
		if err != nil {
			r.logger.WithField("itemId", inst.ItemID).
				WithError(err).Warn("skipping event handler with unresolvable manifest")
			continue
		}
		if !m.HandlesEvent(eventType) {
			continue
		}

		res := r.loader.Execute(ctx, inst, inputs, scope)
		if !res.Success {
			r.logger.WithFields(logrus.Fields{
				"eventType":      eventType,
				"installationId": inst.ID,
			}).WithError(res.Error).Warn("event handler failed")
		}
		deliveries = append(deliveries, EventDelivery{InstallationID: inst.ID, Result: res})
	}
	return deliveries, nil
}
