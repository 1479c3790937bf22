package statemachine

import (
	"fmt"

	"zap-shift-api/models"
)

// WorkloadEffect is the rider-workload side effect attached to a transition.
// The lifecycle engine applies it in the same transaction as the parcel
// update, so the two documents reach a consistent joint state.
type WorkloadEffect int

const (
	EffectNone WorkloadEffect = iota
	// EffectRiderBusy marks the assigned rider in_delivery
	EffectRiderBusy
	// EffectRiderFree releases the assigned rider back to available
	EffectRiderFree
)

// Transition defines a valid state change, who can perform it, and what it
// does to the assigned rider's workload.
type Transition struct {
	From   models.DeliveryStatus
	To     models.DeliveryStatus
	Actor  string // "system", "admin", "rider"
	Effect WorkloadEffect
}

// validTransitions is the authoritative state machine definition
var validTransitions = []Transition{
	// Payment confirmation moves the parcel into the pickup queue
	{From: models.StatusPending, To: models.StatusPendingPickup, Actor: "system", Effect: EffectNone},
	// Admin assigns a rider, which occupies the rider
	{From: models.StatusPendingPickup, To: models.StatusRiderAssigned, Actor: "admin", Effect: EffectRiderBusy},
	// Rider (or admin on their behalf) reports heading out
	{From: models.StatusRiderAssigned, To: models.StatusRiderArriving, Actor: "rider", Effect: EffectNone},
	{From: models.StatusRiderAssigned, To: models.StatusRiderArriving, Actor: "admin", Effect: EffectNone},
	// Delivery completes and frees the rider
	{From: models.StatusRiderAssigned, To: models.StatusDelivered, Actor: "rider", Effect: EffectRiderFree},
	{From: models.StatusRiderAssigned, To: models.StatusDelivered, Actor: "admin", Effect: EffectRiderFree},
	{From: models.StatusRiderArriving, To: models.StatusDelivered, Actor: "rider", Effect: EffectRiderFree},
	{From: models.StatusRiderArriving, To: models.StatusDelivered, Actor: "admin", Effect: EffectRiderFree},
}

type transitionKey struct {
	From  models.DeliveryStatus
	To    models.DeliveryStatus
	Actor string
}

// Build a lookup map for O(1) validation
var transitionMap = func() map[transitionKey]WorkloadEffect {
	m := make(map[transitionKey]WorkloadEffect)
	for _, t := range validTransitions {
		m[transitionKey{t.From, t.To, t.Actor}] = t.Effect
	}
	return m
}()

// InvalidTransitionError reports a rejected state change
type InvalidTransitionError struct {
	From  models.DeliveryStatus
	To    models.DeliveryStatus
	Actor string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s → %s is not allowed for actor %q; valid transitions from %s are: %s",
		e.From, e.To, e.Actor, e.From, describeValidFrom(e.From))
}

// CanTransition checks whether an actor may move a parcel from one delivery
// status to another, and returns the workload effect of the edge.
func CanTransition(from, to models.DeliveryStatus, actor string) (WorkloadEffect, error) {
	key := transitionKey{From: from, To: to, Actor: actor}
	if effect, ok := transitionMap[key]; ok {
		return effect, nil
	}
	return EffectNone, &InvalidTransitionError{From: from, To: to, Actor: actor}
}

// ValidTransitionsFrom returns all valid next states from a given state
func ValidTransitionsFrom(status models.DeliveryStatus) []models.DeliveryStatus {
	var nexts []models.DeliveryStatus
	seen := map[models.DeliveryStatus]bool{}
	for _, t := range validTransitions {
		if t.From == status && !seen[t.To] {
			nexts = append(nexts, t.To)
			seen[t.To] = true
		}
	}
	return nexts
}

func describeValidFrom(status models.DeliveryStatus) string {
	nexts := ValidTransitionsFrom(status)
	if len(nexts) == 0 {
		return "none (terminal state)"
	}
	result := ""
	for i, s := range nexts {
		if i > 0 {
			result += ", "
		}
		result += string(s)
	}
	return result
}

// IsKnownStatus reports whether a string names a delivery status at all
func IsKnownStatus(status models.DeliveryStatus) bool {
	switch status {
	case models.StatusPending, models.StatusPendingPickup, models.StatusRiderAssigned,
		models.StatusRiderArriving, models.StatusDelivered:
		return true
	}
	return false
}

// GetAllTransitions returns the full state machine for documentation
func GetAllTransitions() []Transition {
	return validTransitions
}
