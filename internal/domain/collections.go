package domain

// Document collections used by the dispatch service.
const (
	CollectionUsers         = "users"
	CollectionVehicles      = "vehicles"
	CollectionRequests      = "deliveryRequests"
	CollectionDeliveries    = "deliveries"
	CollectionNotifications = "notifications"
)
