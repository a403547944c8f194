package models

// PaymentStatus represents the billing state of a ride. The core only moves
// it to pending_billing on completion; settlement happens downstream.
type PaymentStatus string

const (
	PaymentStatusUnbilled       PaymentStatus = "unbilled"
	PaymentStatusPendingBilling PaymentStatus = "pending_billing"
	PaymentStatusBilled         PaymentStatus = "billed"
	PaymentStatusPaid           PaymentStatus = "paid"
)

// PaymentMethod represents how a ride is paid for.
type PaymentMethod string

const (
	PaymentMethodInsurance PaymentMethod = "insurance"
	PaymentMethodMedicaid  PaymentMethod = "medicaid"
	PaymentMethodPrivate   PaymentMethod = "private"
	PaymentMethodCash      PaymentMethod = "cash"
)
