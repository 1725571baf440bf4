// config/security_config.go
package config

import "parkwise-booking-core/internal/domain"

type AccessLevel int

const (
	AccessPublic        AccessLevel = iota // No authentication
	AccessAuthenticated                    // Any valid actor token; ownership is enforced by the services
	AccessStaff                            // COUNTER, ADMIN or SYSTEM
)

const reservationService = "/parkwise.reservation.v1.ReservationService/"

// EndpointAccessConfig maps gRPC full method names to their required access level. HTTP routes
// are named after the same methods so both transports share this table.
var EndpointAccessConfig = map[string]AccessLevel{
	"/grpc.health.v1.Health/Check": AccessPublic,
	"/grpc.health.v1.Health/Watch": AccessPublic,
	"healthz":                      AccessPublic,

	reservationService + "CheckAvailability": AccessPublic,

	reservationService + "CreateBooking":      AccessAuthenticated,
	reservationService + "GetBooking":         AccessAuthenticated,
	reservationService + "SetBookingStatus":   AccessAuthenticated,
	reservationService + "RecordPayment":      AccessAuthenticated,
	reservationService + "RecordTopUpPayment": AccessAuthenticated,
	reservationService + "GetPaymentSummary":  AccessAuthenticated,
	reservationService + "ListPayments":       AccessAuthenticated,
	reservationService + "ListStatusHistory":  AccessAuthenticated,

	reservationService + "GetActiveOccupancy": AccessStaff,
}

// GetAccessLevel returns the access level for a given method
func GetAccessLevel(method string) AccessLevel {
	if level, exists := EndpointAccessConfig[method]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return AccessStaff
}

// Permits reports whether role satisfies level.
func (l AccessLevel) Permits(role domain.Role) bool {
	switch l {
	case AccessPublic:
		return true
	case AccessAuthenticated:
		return role != ""
	default:
		return role.IsStaff()
	}
}
