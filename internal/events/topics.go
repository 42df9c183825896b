package events

// Topic constants for domain events emitted by the platform.
const (
	TopicRegistrationCreated   = "registration.created"
	TopicRegistrationCancelled = "registration.cancelled"
	TopicPricingUpdated        = "pricing.updated"
	TopicFeeTypeSoldOut        = "feetype.sold_out"
	TopicReminderSent          = "reminder.sent"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicRegistrationCreated,
		TopicRegistrationCancelled,
		TopicPricingUpdated,
		TopicFeeTypeSoldOut,
		TopicReminderSent,
	}
}
