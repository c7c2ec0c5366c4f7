package core

import (
	"fmt"

	"comandero/internal/order/domain/models"
)

// PatchOutcome describes what applying a TransitionPatch to a locked row
// changes: the new field values, the changed-column payload for the change
// feed, and one audit event per applied field change.
type PatchOutcome struct {
	Order       models.Order
	Changed     map[string]any
	Events      []models.OrderEvent
	BecameReady bool
}

// ApplyPatch computes the effect of patch on current. Status edges are
// validated against the lifecycle table; a no-op patch yields an empty
// Changed map. Version and updated_at are left to the store.
func ApplyPatch(current models.Order, patch TransitionPatch) (PatchOutcome, error) {
	if patch.ExpectedVersion != nil && *patch.ExpectedVersion != current.Version {
		return PatchOutcome{}, ErrVersionConflict
	}

	outcome := PatchOutcome{
		Order:   current,
		Changed: map[string]any{},
	}

	if patch.Status != nil && *patch.Status != current.Status {
		if !current.Status.CanTransition(*patch.Status) {
			return PatchOutcome{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current.Status, *patch.Status)
		}
		outcome.Order.Status = *patch.Status
		outcome.Changed["status"] = string(*patch.Status)
		outcome.Events = append(outcome.Events, models.OrderEvent{
			OrderID:     current.ID,
			EventType:   "status_changed",
			Description: fmt.Sprintf("status changed from %s to %s", current.Status, *patch.Status),
		})
		outcome.BecameReady = *patch.Status == models.StatusReady
	}

	if patch.PaymentStatus != nil && *patch.PaymentStatus != current.PaymentStatus {
		outcome.Order.PaymentStatus = *patch.PaymentStatus
		outcome.Changed["payment_status"] = string(*patch.PaymentStatus)
		outcome.Events = append(outcome.Events, models.OrderEvent{
			OrderID:     current.ID,
			EventType:   "payment_changed",
			Description: fmt.Sprintf("payment status changed from %s to %s", current.PaymentStatus, *patch.PaymentStatus),
		})
	}

	if patch.ClearRider {
		if current.AssignedRiderID != nil {
			outcome.Order.AssignedRiderID = nil
			outcome.Changed["assigned_rider_id"] = nil
			outcome.Events = append(outcome.Events, models.OrderEvent{
				OrderID:     current.ID,
				EventType:   "rider_changed",
				Description: "rider assignment cleared",
			})
		}
	} else if patch.AssignedRiderID != nil {
		if current.AssignedRiderID == nil || *current.AssignedRiderID != *patch.AssignedRiderID {
			outcome.Order.AssignedRiderID = patch.AssignedRiderID
			outcome.Changed["assigned_rider_id"] = *patch.AssignedRiderID
			outcome.Events = append(outcome.Events, models.OrderEvent{
				OrderID:     current.ID,
				EventType:   "rider_changed",
				Description: fmt.Sprintf("rider %d assigned", *patch.AssignedRiderID),
			})
		}
	}

	return outcome, nil
}
