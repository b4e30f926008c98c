package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hugohenrick/nfse-emissor/internal/domain/invoice"
	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

// Valores numéricos são lidos como texto para não depender do codec NUMERIC do driver.
const invoiceSelect = `SELECT id, tenant_id, COALESCE(customer_id::text, ''), series, competence,
	description, service_value::text, deductions::text, withheld, iss_withheld, status, number,
	verification_code, dps_id, receipt_number, access_key_dps, access_key_nfse, provider_response,
	pdf_path, rejection_reason, cancel_reason, submitted_at, authorized_at, cancelled_at,
	created_at, updated_at
	FROM invoices`

const itemSelect = `SELECT id, invoice_id, code, description, quantity::text, unit_value::text, tax_rate::text
	FROM invoice_items WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`

// InvoiceRepository implementa invoice.Repository. Os itens ficam em invoice_items e são
// regravados na mesma transação da nota.
type InvoiceRepository struct {
	db PgxPool
}

// NewInvoiceRepository cria uma nova instância de InvoiceRepository
func NewInvoiceRepository(db PgxPool) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

// Create implementa invoice.Repository.Create
func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	withheld, err := json.Marshal(inv.Withheld)
	if err != nil {
		return fmt.Errorf("falha ao converter retenções para JSON: %w", err)
	}

	err = withTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoices (
				id, tenant_id, customer_id, series, competence, description, service_value,
				deductions, withheld, iss_withheld, status, number, verification_code, dps_id,
				receipt_number, access_key_dps, access_key_nfse, provider_response, pdf_path,
				rejection_reason, cancel_reason, submitted_at, authorized_at, cancelled_at,
				created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
				$19, $20, $21, $22, $23, $24, $25, $26
			)`,
			inv.ID, inv.TenantID, nullable(inv.CustomerID), inv.Series, inv.Competence, inv.Description,
			inv.ServiceValue.String(), inv.Deductions.String(), withheld, inv.ISSWithheld,
			string(inv.Status), inv.Number, inv.VerificationCode, inv.DPSID, inv.ReceiptNumber,
			inv.AccessKeyDPS, inv.AccessKeyNFSe, inv.ProviderResponse, inv.PDFPath,
			inv.RejectionReason, inv.CancelReason, inv.SubmittedAt, inv.AuthorizedAt,
			inv.CancelledAt, inv.CreatedAt, inv.UpdatedAt)
		if err != nil {
			return err
		}
		return insertItems(ctx, tx, inv)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &errs.ConflictError{Resource: "nota", Message: "número já utilizado nesta série"}
		}
		return fmt.Errorf("falha ao criar nota: %w", err)
	}
	return nil
}

// FindByID implementa invoice.Repository.FindByID
func (r *InvoiceRepository) FindByID(ctx context.Context, tenantID, id string) (*invoice.Invoice, error) {
	row := r.db.QueryRow(ctx, invoiceSelect+` WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		return nil, notFound(err, "nota")
	}
	if err := r.loadItems(ctx, []*invoice.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

// List implementa invoice.Repository.List
func (r *InvoiceRepository) List(ctx context.Context, tenantID string, f invoice.Filter) ([]*invoice.Invoice, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	var status any
	if f.Status != "" {
		status = string(f.Status)
	}
	return r.query(ctx,
		invoiceSelect+` WHERE tenant_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		tenantID, status, limit, f.Offset)
}

// ListByStatus implementa invoice.Repository.ListByStatus
func (r *InvoiceRepository) ListByStatus(ctx context.Context, status invoice.Status, limit int) ([]*invoice.Invoice, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx,
		invoiceSelect+` WHERE status = $1 ORDER BY submitted_at NULLS FIRST LIMIT $2`,
		string(status), limit)
}

// Update implementa invoice.Repository.Update
func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	withheld, err := json.Marshal(inv.Withheld)
	if err != nil {
		return fmt.Errorf("falha ao converter retenções para JSON: %w", err)
	}
	inv.UpdatedAt = time.Now()

	err = withTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE invoices SET
				customer_id = $3, series = $4, competence = $5, description = $6, service_value = $7,
				deductions = $8, withheld = $9, iss_withheld = $10, status = $11, number = $12,
				verification_code = $13, dps_id = $14, receipt_number = $15, access_key_dps = $16,
				access_key_nfse = $17, provider_response = $18, pdf_path = $19, rejection_reason = $20,
				cancel_reason = $21, submitted_at = $22, authorized_at = $23, cancelled_at = $24,
				updated_at = $25
			WHERE tenant_id = $1 AND id = $2`,
			inv.TenantID, inv.ID, nullable(inv.CustomerID), inv.Series, inv.Competence, inv.Description,
			inv.ServiceValue.String(), inv.Deductions.String(), withheld, inv.ISSWithheld,
			string(inv.Status), inv.Number, inv.VerificationCode, inv.DPSID, inv.ReceiptNumber,
			inv.AccessKeyDPS, inv.AccessKeyNFSe, inv.ProviderResponse, inv.PDFPath,
			inv.RejectionReason, inv.CancelReason, inv.SubmittedAt, inv.AuthorizedAt,
			inv.CancelledAt, inv.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("nota: %w", errs.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertItems(ctx, tx, inv)
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &errs.ConflictError{Resource: "nota", Message: "número já utilizado nesta série"}
		}
		return fmt.Errorf("falha ao atualizar nota: %w", err)
	}
	return nil
}

// Delete implementa invoice.Repository.Delete. Somente rascunhos são removidos.
func (r *InvoiceRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM invoices WHERE tenant_id = $1 AND id = $2 AND status = $3`,
		tenantID, id, string(invoice.StatusDraft))
	if err != nil {
		return fmt.Errorf("falha ao excluir nota: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("nota em rascunho: %w", errs.ErrNotFound)
	}
	return nil
}

func (r *InvoiceRepository) query(ctx context.Context, sql string, args ...any) ([]*invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("falha ao listar notas: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("falha ao ler nota: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("falha ao iterar notas: %w", err)
	}
	rows.Close()

	if err := r.loadItems(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// loadItems carrega os itens de várias notas em uma única consulta
func (r *InvoiceRepository) loadItems(ctx context.Context, invoices []*invoice.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	ids := make([]string, len(invoices))
	byID := make(map[string]*invoice.Invoice, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		byID[inv.ID] = inv
	}

	rows, err := r.db.Query(ctx, itemSelect, ids)
	if err != nil {
		return fmt.Errorf("falha ao buscar itens da nota: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it                           invoice.Item
			invoiceID                    string
			quantity, unitValue, taxRate string
		)
		if err := rows.Scan(&it.ID, &invoiceID, &it.Code, &it.Description, &quantity, &unitValue, &taxRate); err != nil {
			return fmt.Errorf("falha ao ler item da nota: %w", err)
		}
		if it.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return fmt.Errorf("quantidade inválida no item %s: %w", it.ID, err)
		}
		if it.UnitValue, err = decimal.NewFromString(unitValue); err != nil {
			return fmt.Errorf("valor unitário inválido no item %s: %w", it.ID, err)
		}
		if it.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
			return fmt.Errorf("alíquota inválida no item %s: %w", it.ID, err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Items = append(inv.Items, it)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("falha ao iterar itens da nota: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx pgx.Tx, inv *invoice.Invoice) error {
	for pos, it := range inv.Items {
		_, err := tx.Exec(ctx,
			`INSERT INTO invoice_items (id, invoice_id, position, code, description, quantity, unit_value, tax_rate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, inv.ID, pos, it.Code, it.Description,
			it.Quantity.String(), it.UnitValue.String(), it.TaxRate.String())
		if err != nil {
			return fmt.Errorf("falha ao gravar item %d: %w", pos+1, err)
		}
	}
	return nil
}

func scanInvoice(row scanner) (*invoice.Invoice, error) {
	var (
		inv                              invoice.Invoice
		serviceValue, deductions, status string
		withheld                         []byte
	)
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.CustomerID, &inv.Series, &inv.Competence, &inv.Description,
		&serviceValue, &deductions, &withheld, &inv.ISSWithheld, &status, &inv.Number,
		&inv.VerificationCode, &inv.DPSID, &inv.ReceiptNumber, &inv.AccessKeyDPS, &inv.AccessKeyNFSe,
		&inv.ProviderResponse, &inv.PDFPath, &inv.RejectionReason, &inv.CancelReason,
		&inv.SubmittedAt, &inv.AuthorizedAt, &inv.CancelledAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inv.ServiceValue, err = decimal.NewFromString(serviceValue); err != nil {
		return nil, fmt.Errorf("valor do serviço inválido: %w", err)
	}
	if inv.Deductions, err = decimal.NewFromString(deductions); err != nil {
		return nil, fmt.Errorf("deduções inválidas: %w", err)
	}
	if len(withheld) > 0 {
		if err := json.Unmarshal(withheld, &inv.Withheld); err != nil {
			return nil, fmt.Errorf("falha ao converter retenções do JSON: %w", err)
		}
	}
	inv.Status = invoice.Status(status)
	return &inv, nil
}
