package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classe les erreurs métier du pipeline de commande.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindValidation
	KindInsufficientStock
	KindUnauthorized
	KindForbidden
	KindPaymentNotSuccessful
	KindWebhookSignature
	KindUpstreamTimeout
	KindUpstreamUnavailable
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extrait le Kind d'une erreur (KindInternal si inconnue).
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf extrait le message exposable au client.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Erreur serveur"
}

// HTTPStatus mappe un Kind vers le statut HTTP du contrat d'API.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInsufficientStock, KindPaymentNotSuccessful, KindWebhookSignature:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindUpstreamTimeout:
		return http.StatusGatewayTimeout
	case KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
