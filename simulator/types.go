package simulator

import (
	"encoding/json"
	"fmt"
	"time"
)

// BerthState represents the allocation state of a berth
type BerthState int

const (
	BerthAvailable BerthState = iota // Free and allocatable
	BerthOccupied                    // Exclusively owned by an in-progress operation
	BerthMaintenance                 // Withdrawn from the allocatable pool
)

// String returns the string representation of BerthState
func (bs BerthState) String() string {
	switch bs {
	case BerthAvailable:
		return "available"
	case BerthOccupied:
		return "occupied"
	case BerthMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// ParseBerthState parses a string into BerthState
func ParseBerthState(s string) (BerthState, error) {
	switch s {
	case "available":
		return BerthAvailable, nil
	case "occupied":
		return BerthOccupied, nil
	case "maintenance":
		return BerthMaintenance, nil
	default:
		return BerthAvailable, fmt.Errorf("invalid berth state: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for BerthState
func (bs BerthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(bs.String())
}

// UnmarshalJSON implements json.Unmarshaler for BerthState
func (bs *BerthState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBerthState(s)
	if err != nil {
		return err
	}
	*bs = parsed
	return nil
}

// QueueState represents a vessel's progress through the waiting queue
type QueueState int

const (
	QueueWaiting   QueueState = iota // In the queue, not yet assigned a berth
	QueueInService                   // Bound to a berth via an in-progress operation
	QueueCompleted                   // Operation finished, vessel departed
)

// String returns the string representation of QueueState
func (qs QueueState) String() string {
	switch qs {
	case QueueWaiting:
		return "waiting"
	case QueueInService:
		return "in_service"
	case QueueCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseQueueState parses a string into QueueState
func ParseQueueState(s string) (QueueState, error) {
	switch s {
	case "waiting":
		return QueueWaiting, nil
	case "in_service":
		return QueueInService, nil
	case "completed":
		return QueueCompleted, nil
	default:
		return QueueWaiting, fmt.Errorf("invalid queue state: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for QueueState
func (qs QueueState) MarshalJSON() ([]byte, error) {
	return json.Marshal(qs.String())
}

// UnmarshalJSON implements json.Unmarshaler for QueueState
func (qs *QueueState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseQueueState(s)
	if err != nil {
		return err
	}
	*qs = parsed
	return nil
}

// OperationState represents the lifecycle state of a port operation
type OperationState int

const (
	OperationInProgress OperationState = iota
	OperationCompleted
)

// String returns the string representation of OperationState
func (os OperationState) String() string {
	switch os {
	case OperationInProgress:
		return "in_progress"
	case OperationCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// ParseOperationState parses a string into OperationState
func ParseOperationState(s string) (OperationState, error) {
	switch s {
	case "in_progress":
		return OperationInProgress, nil
	case "completed":
		return OperationCompleted, nil
	default:
		return OperationInProgress, fmt.Errorf("invalid operation state: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for OperationState
func (os OperationState) MarshalJSON() ([]byte, error) {
	return json.Marshal(os.String())
}

// UnmarshalJSON implements json.Unmarshaler for OperationState
func (os *OperationState) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperationState(s)
	if err != nil {
		return err
	}
	*os = parsed
	return nil
}

// OperationKind classifies a port call as import or export cargo handling.
// Orthogonal to scheduling: the allocator never looks at it.
type OperationKind int

const (
	KindImport OperationKind = iota
	KindExport
)

// String returns the string representation of OperationKind
func (ok OperationKind) String() string {
	switch ok {
	case KindImport:
		return "import"
	case KindExport:
		return "export"
	default:
		return "import"
	}
}

// ParseOperationKind parses a string into OperationKind
func ParseOperationKind(s string) (OperationKind, error) {
	switch s {
	case "import":
		return KindImport, nil
	case "export":
		return KindExport, nil
	default:
		return KindImport, fmt.Errorf("invalid operation kind: %s (must be 'import' or 'export')", s)
	}
}

// MarshalJSON implements json.Marshaler for OperationKind
func (ok OperationKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(ok.String())
}

// UnmarshalJSON implements json.Unmarshaler for OperationKind
func (ok *OperationKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOperationKind(s)
	if err != nil {
		return err
	}
	*ok = parsed
	return nil
}

// CustomsStatus is the clearance state attached to a vessel record.
// Generated data only; nothing in the allocation path reads it.
type CustomsStatus int

const (
	CustomsApproved CustomsStatus = iota
	CustomsPending
	CustomsUnderReview
)

// String returns the string representation of CustomsStatus
func (cs CustomsStatus) String() string {
	switch cs {
	case CustomsApproved:
		return "approved"
	case CustomsPending:
		return "pending"
	case CustomsUnderReview:
		return "under_review"
	default:
		return "pending"
	}
}

// ParseCustomsStatus parses a string into CustomsStatus
func ParseCustomsStatus(s string) (CustomsStatus, error) {
	switch s {
	case "approved":
		return CustomsApproved, nil
	case "pending":
		return CustomsPending, nil
	case "under_review":
		return CustomsUnderReview, nil
	default:
		return CustomsPending, fmt.Errorf("invalid customs status: %s", s)
	}
}

// MarshalJSON implements json.Marshaler for CustomsStatus
func (cs CustomsStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(cs.String())
}

// UnmarshalJSON implements json.Unmarshaler for CustomsStatus
func (cs *CustomsStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCustomsStatus(s)
	if err != nil {
		return err
	}
	*cs = parsed
	return nil
}

// Vessel is the immutable descriptor of one ship calling at the port.
// Created by the arrival generator; never mutated afterwards. The queue
// entry and operation records track its transit, not the vessel itself.
type Vessel struct {
	ID                int64         `json:"id"`
	Name              string        `json:"name"`
	Class             string        `json:"class"`
	Kind              OperationKind `json:"kind"`
	Priority          int           `json:"priority"` // 1..3, higher served first
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Customs           CustomsStatus `json:"customs"`
	Arrival           time.Time     `json:"arrival"`
}

// MaintenanceWindow is the scheduled downtime attached to a berth
type MaintenanceWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Berth is a discrete, exclusively-ownable servicing resource.
// Exactly one in-progress operation may own an occupied berth.
type Berth struct {
	ID          int64              `json:"id"`
	Number      int                `json:"number"`
	State       BerthState         `json:"state"`
	Maintenance *MaintenanceWindow `json:"maintenance,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// QueueEntry tracks one vessel's transit through the waiting queue.
// Invariant: InService iff an in-progress operation exists for the vessel.
type QueueEntry struct {
	ID           int64      `json:"id"`
	VesselID     int64      `json:"vesselId"`
	Arrival      time.Time  `json:"arrival"`
	State        QueueState `json:"state"`
	ServiceStart *time.Time `json:"serviceStart,omitempty"` // Set on allocation
	ServiceEnd   *time.Time `json:"serviceEnd,omitempty"`   // Set on completion
}

// WaitingEntry is a queue entry joined with the vessel fields the
// allocator needs to bind it to a berth.
type WaitingEntry struct {
	EntryID           int64         `json:"entryId"`
	VesselID          int64         `json:"vesselId"`
	VesselName        string        `json:"vesselName"`
	Priority          int           `json:"priority"`
	Kind              OperationKind `json:"kind"`
	EstimatedDuration time.Duration `json:"estimatedDuration"`
	Arrival           time.Time     `json:"arrival"`
}

// Operation records one vessel's service period at one berth.
// ScheduledEnd is fixed at allocation time (planned duration plus one-shot
// jitter), so completion detection is a pure time comparison.
type Operation struct {
	ID              int64          `json:"id"`
	VesselID        int64          `json:"vesselId"`
	BerthID         int64          `json:"berthId"`
	VesselName      string         `json:"vesselName,omitempty"`
	BerthNumber     int            `json:"berthNumber,omitempty"`
	Kind            OperationKind  `json:"kind"`
	Start           time.Time      `json:"start"`
	PlannedDuration time.Duration  `json:"plannedDuration"`
	ScheduledEnd    time.Time      `json:"scheduledEnd"`
	ActualDuration  time.Duration  `json:"actualDuration"`
	State           OperationState `json:"state"`
}

// Efficiency returns planned/actual as a percentage for a completed
// operation. Zero when the actual duration is not yet measurable.
func (o *Operation) Efficiency() float64 {
	if o.ActualDuration <= 0 {
		return 0
	}
	return float64(o.PlannedDuration) / float64(o.ActualDuration) * 100.0
}
