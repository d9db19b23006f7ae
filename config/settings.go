package config

import (
	"log"
	"os"
	"strings"
	"time"
)

// AppLocation is the business timezone; document-number years roll over in it.
//
// Set via env:
// - APP_TIMEZONE=Asia/Kolkata (default)
func AppLocation() *time.Location {
	name := strings.TrimSpace(os.Getenv("APP_TIMEZONE"))
	if name == "" {
		name = "Asia/Kolkata"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("invalid APP_TIMEZONE %q: %v; using UTC", name, err)
		return time.UTC
	}
	return loc
}

// PhoneRegion is the default region for parsing customer phone numbers.
func PhoneRegion() string {
	if v := strings.TrimSpace(os.Getenv("PHONE_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "IN"
}

// EmployeeEditWindow is how long an employee may edit records they created.
//
// Set via env:
// - EMPLOYEE_EDIT_WINDOW_HOURS=24 (default)
func EmployeeEditWindow() time.Duration {
	return time.Duration(intFromEnv("EMPLOYEE_EDIT_WINDOW_HOURS", 24)) * time.Hour
}

// PaymentTermsDays sets invoice due dates.
func PaymentTermsDays() int {
	return intFromEnv("PAYMENT_TERMS_DAYS", 30)
}

// StrictStageForDelivery requires an order item to have reached post_process
// before any of its quantity can go on a challan.
//
// Set via env:
// - STRICT_STAGE_FOR_DELIVERY=true
func StrictStageForDelivery() bool {
	return boolFromEnv("STRICT_STAGE_FOR_DELIVERY")
}
