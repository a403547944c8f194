package validation

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/medtransit/nemt-scheduler/pkg/models"
)

// Trip codes drop ambiguous characters (0/O, 1/I/L) from the alphabet.
var tripCodeRegex = regexp.MustCompile(`^NEMT-[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}-[ABCDEFGHJKMNPQRSTUVWXYZ23456789]{4}$`)

// Register installs the domain validators on gin's binding engine. It must
// run once at startup, before the router begins binding requests.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
	}

	for tag, fn := range map[string]validator.Func{
		"ride_status":    validateRideStatus,
		"payment_method": validatePaymentMethod,
		"user_role":      validateUserRole,
		"trip_code":      validateTripCode,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %q validator: %w", tag, err)
		}
	}

	return nil
}

// validateRideStatus checks if a ride status value is one of the known states
func validateRideStatus(fl validator.FieldLevel) bool {
	switch models.RideStatus(fl.Field().String()) {
	case models.RideStatusPending,
		models.RideStatusAssigned,
		models.RideStatusStarted,
		models.RideStatusPickedUp,
		models.RideStatusInProgress,
		models.RideStatusCompleted,
		models.RideStatusCancelled,
		models.RideStatusNoShow,
		models.RideStatusReturnStarted,
		models.RideStatusReturnPickedUp,
		models.RideStatusReturnComplete:
		return true
	}
	return false
}

// validatePaymentMethod checks if a payment method is valid
func validatePaymentMethod(fl validator.FieldLevel) bool {
	switch models.PaymentMethod(fl.Field().String()) {
	case models.PaymentMethodInsurance,
		models.PaymentMethodMedicaid,
		models.PaymentMethodPrivate,
		models.PaymentMethodCash:
		return true
	}
	return false
}

// validateUserRole checks if a user role is valid
func validateUserRole(fl validator.FieldLevel) bool {
	return models.UserRole(fl.Field().String()).Valid()
}

// validateTripCode checks if a string is a well-formed trip code
func validateTripCode(fl validator.FieldLevel) bool {
	return tripCodeRegex.MatchString(fl.Field().String())
}
