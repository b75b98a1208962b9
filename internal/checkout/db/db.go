package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-express-checkout/internal/models"
)

// ErrPaymentNotFound is returned when a token has no matching record.
var ErrPaymentNotFound = errors.New("express payment not found")

type DB struct {
	Bun *bun.DB
}

// ---------------- EXPRESS PAYMENTS ----------------

// CreatePayment → insert a new transaction record
func (d *DB) CreatePayment(payment models.ExpressPayment) error {
	_, err := d.Bun.NewInsert().Model(&payment).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create express payment %s: %w", payment.Token, err)
	}
	return nil
}

// GetPaymentByToken → fetch one transaction by its gateway token
func (d *DB) GetPaymentByToken(token string) (*models.ExpressPayment, error) {
	var payment models.ExpressPayment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("token = ?", token).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get express payment %s: %w", token, err)
	}
	return &payment, nil
}

// UpdatePayment → update the mutable lifecycle fields; token, amount and
// currency never change after creation
func (d *DB) UpdatePayment(payment models.ExpressPayment) error {
	payment.UpdatedAt = time.Now()
	_, err := d.Bun.NewUpdate().
		Model(&payment).
		Column("status", "payer_id", "payer_email", "transaction_id", "correlation_id", "updated_at").
		Where("token = ?", payment.Token).
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to update express payment %s: %w", payment.Token, err)
	}
	return nil
}

// ListPayments → most recent transactions first, for the admin surface
func (d *DB) ListPayments(limit, offset int) ([]models.ExpressPayment, error) {
	var payments []models.ExpressPayment
	err := d.Bun.NewSelect().
		Model(&payments).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list express payments: %w", err)
	}
	return payments, nil
}

// ---------------- GATEWAY LOGS ----------------

// CreateGatewayLog → append one failure audit row; rows are never
// updated or deleted
func (d *DB) CreateGatewayLog(entry models.GatewayLog) error {
	_, err := d.Bun.NewInsert().Model(&entry).Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to write gateway log: %w", err)
	}
	return nil
}

// ListGatewayLogs → most recent failures first
func (d *DB) ListGatewayLogs(limit, offset int) ([]models.GatewayLog, error) {
	var logs []models.GatewayLog
	err := d.Bun.NewSelect().
		Model(&logs).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway logs: %w", err)
	}
	return logs, nil
}

// ---------------- GATEWAY SETTINGS ----------------

// GetGatewaySettings → load the single stored settings row. A missing
// row is not an error: site-level config may carry all the values.
func (d *DB) GetGatewaySettings() (*models.GatewaySettings, error) {
	var settings models.GatewaySettings
	err := d.Bun.NewSelect().
		Model(&settings).
		Where("name = ?", models.SettingsName).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return &models.GatewaySettings{Name: models.SettingsName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway settings: %w", err)
	}
	return &settings, nil
}

// SaveGatewaySettings → upsert the stored settings row
func (d *DB) SaveGatewaySettings(settings models.GatewaySettings) error {
	settings.Name = models.SettingsName
	settings.UpdatedAt = time.Now()
	_, err := d.Bun.NewInsert().
		Model(&settings).
		On("CONFLICT (name) DO UPDATE").
		Set("api_username = EXCLUDED.api_username").
		Set("api_password = EXCLUDED.api_password").
		Set("signature = EXCLUDED.signature").
		Set("sandbox = EXCLUDED.sandbox").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(context.Background())
	if err != nil {
		return fmt.Errorf("failed to save gateway settings: %w", err)
	}
	return nil
}
