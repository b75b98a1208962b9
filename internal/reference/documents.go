package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Reference document type tags as callers supply them in checkout data.
const (
	TypeSalesOrder   = "Sales Order"
	TypeSalesInvoice = "Sales Invoice"
)

type SalesOrder struct {
	bun.BaseModel `bun:"table:sales_orders"`

	Name      string    `bun:"name,pk" json:"name"`
	Customer  string    `bun:"customer,nullzero" json:"customer,omitempty"`
	Status    string    `bun:"status" json:"status"`
	Total     float64   `bun:"total" json:"total"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type SalesInvoice struct {
	bun.BaseModel `bun:"table:sales_invoices"`

	Name      string    `bun:"name,pk" json:"name"`
	Customer  string    `bun:"customer,nullzero" json:"customer,omitempty"`
	Status    string    `bun:"status" json:"status"`
	Total     float64   `bun:"total" json:"total"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Docs loads the concrete document variants from the database and
// registers them with a dispatcher.
type Docs struct {
	Bun *bun.DB
}

func (d *Docs) RegisterAll(dispatcher *Dispatcher) {
	dispatcher.Register(TypeSalesOrder, d.salesOrder)
	dispatcher.Register(TypeSalesInvoice, d.salesInvoice)
}

func (d *Docs) salesOrder(name string) (Document, error) {
	var order SalesOrder
	err := d.Bun.NewSelect().
		Model(&order).
		Where("name = ?", name).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sales order %s not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &salesOrderDoc{db: d.Bun, order: &order}, nil
}

func (d *Docs) salesInvoice(name string) (Document, error) {
	var invoice SalesInvoice
	err := d.Bun.NewSelect().
		Model(&invoice).
		Where("name = ?", name).
		Limit(1).
		Scan(context.Background())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sales invoice %s not found", name)
	}
	if err != nil {
		return nil, err
	}
	return &salesInvoiceDoc{db: d.Bun, invoice: &invoice}, nil
}

type salesOrderDoc struct {
	db    *bun.DB
	order *SalesOrder
}

func (s *salesOrderDoc) MarkPaid() error {
	return s.setStatus("Paid")
}

func (s *salesOrderDoc) MarkCancelled() error {
	return s.setStatus("Cancelled")
}

func (s *salesOrderDoc) setStatus(status string) error {
	s.order.Status = status
	s.order.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().
		Model(s.order).
		Column("status", "updated_at").
		Where("name = ?", s.order.Name).
		Exec(context.Background())
	return err
}

type salesInvoiceDoc struct {
	db      *bun.DB
	invoice *SalesInvoice
}

func (s *salesInvoiceDoc) MarkPaid() error {
	return s.setStatus("Paid")
}

func (s *salesInvoiceDoc) MarkCancelled() error {
	return s.setStatus("Cancelled")
}

func (s *salesInvoiceDoc) setStatus(status string) error {
	s.invoice.Status = status
	s.invoice.UpdatedAt = time.Now()
	_, err := s.db.NewUpdate().
		Model(s.invoice).
		Column("status", "updated_at").
		Where("name = ?", s.invoice.Name).
		Exec(context.Background())
	return err
}
