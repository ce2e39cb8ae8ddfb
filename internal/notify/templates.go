package notify

import (
	"fmt"

	"github.com/mahmoudabboud-bit/express-load-flow-sub000/internal/models"
)

// audience selects the wording for a rendered notification.
type audience int

const (
	audiencePrimary audience = iota
	audienceDispatcher
)

// render produces the title and message for an event. The primary recipient
// and the dispatcher audience get different wording for the same event.
func render(e Event, aud audience) (title, message string) {
	route := e.Data["route"]
	loadRef := ""

	if e.LoadID != nil {
		loadRef = *e.LoadID
	}

	switch e.Type {
	case models.NotificationLoadSubmitted:
		if aud == audienceDispatcher {
			return "New load request",
				fmt.Sprintf("A new load request %s (%s) is waiting for driver assignment.", loadRef, route)
		}
		return "Load request received",
			fmt.Sprintf("We received your load request %s (%s). A dispatcher will assign a driver shortly.", loadRef, route)

	case models.NotificationLoadApproved:
		msg := fmt.Sprintf("Your load %s has been approved. Driver %s, truck %s.",
			loadRef, e.Data["driver_name"], e.Data["truck_number"])
		if eta := e.Data["eta"]; eta != "" {
			msg += " Estimated arrival: " + eta + "."
		}
		return "Load approved", msg

	case models.NotificationLoadInTransit:
		return "Load in transit",
			fmt.Sprintf("Your load %s is on its way to %s.", loadRef, e.Data["destination"])

	case models.NotificationLoadDelivered:
		return "Load delivered",
			fmt.Sprintf("Your load %s has been delivered.", loadRef)

	case models.NotificationETAUpdated:
		return "Delivery ETA updated",
			fmt.Sprintf("The estimated arrival for load %s is now %s.", loadRef, e.Data["eta"])

	case models.NotificationDriverAvailability:
		return "Driver availability changed",
			fmt.Sprintf("Driver %s is now %s.", e.Data["driver_name"], e.Data["availability"])

	case models.NotificationPaymentReceived:
		if aud == audienceDispatcher {
			return "Payment received",
				fmt.Sprintf("Payment received for load %s.", loadRef)
		}
		return "Payment received",
			fmt.Sprintf("Thank you, your payment for load %s was received.", loadRef)
	}

	return string(e.Type), fmt.Sprintf("Update on load %s.", loadRef)
}
