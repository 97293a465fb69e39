// Package pricing centralise l'arithmétique des montants : le devis
// pré-paiement et la commande finale passent par les mêmes fonctions,
// le montant autorisé par la passerelle est donc toujours celui enregistré.
package pricing

import (
	"math"

	"velora_back_end/internal/models"
)

// TaxRate est le taux de TVA appliqué sur le sous-total articles
const TaxRate = 0.07

// DefaultShipping est le forfait de livraison quand le client n'en fournit pas
const DefaultShipping = 5.00

// Quote décompose le montant d'une commande
type Quote struct {
	ItemsPrice    float64 `json:"items_price"`
	TaxPrice      float64 `json:"tax_price"`
	ShippingPrice float64 `json:"shipping_price"`
	TotalPrice    float64 `json:"total_price"`
}

// QuoteCart calcule le devis d'une liste d'items panier.
// Fonction pure : aucun I/O, déterministe.
func QuoteCart(items []models.CartItem, shipping float64) Quote {
	var itemsPrice float64
	for _, item := range items {
		itemsPrice += item.Price * float64(item.Quantity)
	}
	return quote(itemsPrice, shipping)
}

// QuoteOrder calcule le devis d'une liste d'items commande.
func QuoteOrder(items []models.OrderItem, shipping float64) Quote {
	var itemsPrice float64
	for _, item := range items {
		itemsPrice += item.Price * float64(item.Quantity)
	}
	return quote(itemsPrice, shipping)
}

func quote(itemsPrice, shipping float64) Quote {
	itemsPrice = RoundCents(itemsPrice)
	tax := RoundCents(itemsPrice * TaxRate)
	shipping = RoundCents(shipping)
	return Quote{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    RoundCents(itemsPrice + tax + shipping),
	}
}

// MinorUnits convertit un montant en centimes pour la passerelle
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// RoundCents arrondit au centime
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// SameAmount compare deux montants à la tolérance d'arrondi près
func SameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}
