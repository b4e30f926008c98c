// Package repository contém as implementações PostgreSQL dos repositórios de domínio.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hugohenrick/nfse-emissor/pkg/errs"
)

// PgxPool é o subconjunto do pool usado pelos repositórios.
// É implementado por *pgxpool.Pool e por pgxmock.PgxPoolIface.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// withTx executa fn dentro de uma transação, com rollback em caso de erro
func withTx(ctx context.Context, db PgxPool, fn func(tx pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return errors.Join(err, fmt.Errorf("falha ao fazer rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("falha ao fazer commit: %w", err)
	}
	return nil
}

// isUniqueViolation verifica se o erro é violação de restrição de unicidade
func isUniqueViolation(err error) bool {
	var pg *pgconn.PgError
	return errors.As(err, &pg) && pg.Code == "23505"
}

// notFound converte pgx.ErrNoRows em errs.ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	}
	return fmt.Errorf("falha ao buscar %s: %w", what, err)
}

// nullable converte string vazia em NULL
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
