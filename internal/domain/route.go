package domain

import (
	"time"

	"github.com/google/uuid"
)

type Route struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// RouteSnapshot is stamped on every loan and transaction created for a route.
type RouteSnapshot struct {
	SnapshotRouteID        uuid.UUID  `json:"snapshot_route_id" db:"snapshot_route_id"`
	SnapshotRouteName      string     `json:"snapshot_route_name" db:"snapshot_route_name"`
	SnapshotLeadID         *uuid.UUID `json:"snapshot_lead_id,omitempty" db:"snapshot_lead_id"`
	SnapshotLeadName       string     `json:"snapshot_lead_name" db:"snapshot_lead_name"`
	SnapshotLeadAssignedAt *time.Time `json:"snapshot_lead_assigned_at,omitempty" db:"snapshot_lead_assigned_at"`
}
