package models

import "time"

// Notification categories known to the platform. Unknown categories are
// still accepted and default to enabled.
const (
	CategorySystem                       = "system"
	CategoryEditionPublished             = "edition_published"
	CategoryEditionUpdated               = "edition_updated"
	CategoryVolunteerApplicationReceived = "volunteer_application_received"
	CategoryVolunteerApplicationAccepted = "volunteer_application_accepted"
	CategoryVolunteerApplicationRejected = "volunteer_application_rejected"
	CategoryVolunteerScheduleUpdated     = "volunteer_schedule_updated"
	CategoryCarpoolBookingReceived       = "carpool_booking_received"
	CategoryCarpoolBookingAccepted       = "carpool_booking_accepted"
	CategoryCarpoolBookingRejected       = "carpool_booking_rejected"
	CategoryCarpoolCancelled             = "carpool_cancelled"
	CategoryTicketPurchased              = "ticket_purchased"
	CategoryNewMessage                   = "new_message"
)

// KnownCategories lists every category exposed in the preference screen
var KnownCategories = []string{
	CategorySystem,
	CategoryEditionPublished,
	CategoryEditionUpdated,
	CategoryVolunteerApplicationReceived,
	CategoryVolunteerApplicationAccepted,
	CategoryVolunteerApplicationRejected,
	CategoryVolunteerScheduleUpdated,
	CategoryCarpoolBookingReceived,
	CategoryCarpoolBookingAccepted,
	CategoryCarpoolBookingRejected,
	CategoryCarpoolCancelled,
	CategoryTicketPurchased,
	CategoryNewMessage,
}

// NotificationPreference is one stored override, a missing row means enabled
type NotificationPreference struct {
	UserID       string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	Category     string    `gorm:"primaryKey;type:varchar(64)" json:"category"`
	// false must survive the insert, so no gorm default tag on these two
	InAppEnabled bool      `gorm:"not null" json:"in_app_enabled"`
	EmailEnabled bool      `gorm:"not null" json:"email_enabled"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (NotificationPreference) TableName() string {
	return "notification_preferences"
}

// PreferenceSet is the merged view: overrides applied on an all-enabled default
type PreferenceSet struct {
	UserID string          `json:"user_id"`
	InApp  map[string]bool `json:"in_app"`
	Email  map[string]bool `json:"email"`
}

// Allows reports the in-app flag for category, unset means enabled
func (p PreferenceSet) Allows(category string) bool {
	enabled, ok := p.InApp[category]
	return !ok || enabled
}

// AllowsEmail reports the email flag for category, unset means enabled
func (p PreferenceSet) AllowsEmail(category string) bool {
	enabled, ok := p.Email[category]
	return !ok || enabled
}
