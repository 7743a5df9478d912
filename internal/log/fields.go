package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldComponent = "component"
	FieldUser      = "user"
	FieldClub      = "club"

	// Booking fields
	FieldBookingID  = "booking_id"
	FieldFacilityID = "facility_id"
	FieldUnitID     = "unit_id"
	FieldStartsAt   = "starts_at"
	FieldEndsAt     = "ends_at"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"

	// Reconciler fields
	FieldReleased  = "released"
	FieldCompleted = "completed"
)
