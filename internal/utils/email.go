package utils

import (
	"bytes"
	"log"
	"os"
	"strconv"

	"velora_back_end/internal/models"

	"github.com/wneessen/go-mail"
)

// SendConfirmationEmail envoie un e-mail HTML avec pièce jointe PDF optionnelle
func SendConfirmationEmail(to, subject, htmlBody string, pdfAttachment []byte) error {
	msg := mail.NewMsg()

	from := os.Getenv("SMTP_FROM")
	if from == "" {
		from = "noreply@velora.shop"
	}
	if err := msg.From(from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlBody)

	if pdfAttachment != nil {
		msg.AttachReader("facture_velora.pdf", bytes.NewReader(pdfAttachment))
	}

	host := os.Getenv("SMTP_HOST")
	port := 587
	if p, err := strconv.Atoi(os.Getenv("SMTP_PORT")); err == nil && p > 0 {
		port = p
	}

	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(os.Getenv("SMTP_USERNAME")),
		mail.WithPassword(os.Getenv("SMTP_PASSWORD")),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return err
	}

	log.Println("📤 Envoi de l'e-mail à", to)
	return client.DialAndSend(msg)
}

// NotifyOrderConfirmed est le hook post-règlement : génère la facture,
// l'archive et envoie la confirmation. Tout échec est loggé, jamais remonté —
// la commande est déjà réglée.
func NotifyOrderConfirmed(order models.Order, email string) {
	htmlBody := GenerateOrderConfirmationHTML(order, email)

	pdf, err := GenerateInvoicePDF(order, email)
	if err != nil {
		log.Printf("⚠️ Génération facture %s échouée: %v", order.ID, err)
		pdf = nil
	} else if err := ArchiveInvoice(order.ID, pdf); err != nil {
		log.Printf("⚠️ Archivage facture %s échoué: %v", order.ID, err)
	}

	if err := SendConfirmationEmail(email, "Confirmation de votre commande Velora", htmlBody, pdf); err != nil {
		log.Printf("❌ Envoi confirmation commande %s à %s échoué: %v", order.ID, email, err)
		return
	}
	log.Printf("✅ Confirmation commande %s envoyée à %s", order.ID, email)
}
