package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// PGDetail is the Postgres diagnostic carried by a driver error.
type PGDetail struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Message    string `json:"message,omitempty"`
}

// PostgresDetail extracts diagnostics from either pgx or lib/pq errors.
func PostgresDetail(err error) (PGDetail, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return PGDetail{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Message:    pgxErr.Message,
		}, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return PGDetail{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Message:    pqErr.Message,
		}, true
	}
	return PGDetail{}, false
}

// ErrorDump is a log-friendly view of an error chain.
type ErrorDump struct {
	TopMessage string    `json:"top_message"`
	Code       Code      `json:"code,omitempty"`
	Chain      []string  `json:"chain,omitempty"`
	Postgres   *PGDetail `json:"postgres,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	if pg, ok := PostgresDetail(err); ok {
		d.Postgres = &pg
	}
	return d
}

// Fields flattens the chain and Postgres parts of the dump into logger
// fields, omitting empty parts. The logger adds the message and code itself.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{}
	if len(d.Chain) > 1 {
		fields["error_chain"] = d.Chain
	}
	if d.Postgres != nil {
		fields["pg_code"] = d.Postgres.Code
		if d.Postgres.Constraint != "" {
			fields["pg_constraint"] = d.Postgres.Constraint
		}
	}
	return fields
}
