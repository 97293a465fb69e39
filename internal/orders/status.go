package orders

import "velora_back_end/internal/models"

// transitions autorisées : pending → processing → shipped → delivered,
// cancelled atteignable depuis tout état pré-livraison.
var transitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

// ValidStatus indique si la valeur fait partie de l'énumération
func ValidStatus(status string) bool {
	_, ok := transitions[status]
	return ok
}

// CanTransition vérifie la machine à états des statuts de commande
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
