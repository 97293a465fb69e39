package utils

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"velora_back_end/internal/database"

	"github.com/minio/minio-go/v7"
)

func invoiceBucket() string {
	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "velora-invoices"
	}
	return bucket
}

func invoiceObjectName(orderID string) string {
	return fmt.Sprintf("orders/%s.pdf", orderID)
}

// ArchiveInvoice dépose la facture PDF d'une commande dans le bucket
func ArchiveInvoice(orderID string, pdf []byte) error {
	if database.MinIO == nil {
		return fmt.Errorf("MinIO non initialisé")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := database.MinIO.PutObject(ctx, invoiceBucket(), invoiceObjectName(orderID),
		bytes.NewReader(pdf), int64(len(pdf)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	return err
}

// FetchInvoice relit la facture archivée d'une commande
func FetchInvoice(ctx context.Context, orderID string) ([]byte, error) {
	if database.MinIO == nil {
		return nil, fmt.Errorf("MinIO non initialisé")
	}

	obj, err := database.MinIO.GetObject(ctx, invoiceBucket(), invoiceObjectName(orderID), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// InvoiceSignedURL génère une URL signée temporaire vers la facture archivée
func InvoiceSignedURL(ctx context.Context, orderID string, duration time.Duration) (string, error) {
	if database.MinIO == nil {
		return "", fmt.Errorf("MinIO non initialisé")
	}

	reqParams := make(url.Values)
	presignedURL, err := database.MinIO.PresignedGetObject(ctx, invoiceBucket(), invoiceObjectName(orderID), duration, reqParams)
	if err != nil {
		return "", err
	}
	return presignedURL.String(), nil
}
