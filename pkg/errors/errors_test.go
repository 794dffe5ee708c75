package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:        {http.StatusBadRequest, final, "validation failed", detailed},
		CodeForbidden:         {http.StatusForbidden, final, "access denied", opaque},
		CodeNotFound:          {http.StatusNotFound, final, "resource not found", opaque},
		CodeConflict:          {http.StatusConflict, final, "conflict detected", opaque},
		CodeStateConflict:     {http.StatusUnprocessableEntity, final, "state transition disallowed", detailed},
		CodeInternal:          {http.StatusInternalServerError, retryable, "internal server error", opaque},
		CodeDependency:        {http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed},
		CodeInsufficientFunds: {http.StatusUnprocessableEntity, final, "insufficient balance", detailed},
		CodeCooldown:          {http.StatusTooManyRequests, final, "action not yet available", detailed},
		CodeBusy:              {http.StatusConflict, retryable, "resource busy, retry shortly", opaque},
	}
	require.Len(t, metadataByCode, len(want), "every code needs an expectation")
	for code, meta := range want {
		assert.Equal(t, meta, MetadataFor(code), code)
	}
	assert.Equal(t, want[CodeInternal], MetadataFor("SOMETHING_UNKNOWN"))
}

func TestConstructorsKeepCodeMessageAndCause(t *testing.T) {
	base := New(CodeValidation, "missing qty")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing qty", base.Message())
	assert.Nil(t, base.Details())
	assert.NotNil(t, base.WithDetails(map[string]string{"field": "qty"}).Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeConflict, wrapped.Code())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
}

func TestAsAndIsCodeFollowWrappedChain(t *testing.T) {
	typed := Newf(CodeStateConflict, "order is %s", "cancelled")
	wrapped := fmt.Errorf("reject order: %w", typed)

	assert.Same(t, typed, As(wrapped))
	assert.Nil(t, As(nil))
	assert.True(t, IsCode(wrapped, CodeStateConflict))
	assert.False(t, IsCode(wrapped, CodeForbidden))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeStateConflict))
	assert.Equal(t, "STATE_CONFLICT: order is cancelled", typed.Error())
}

func TestDomainConstructorsAndRetryable(t *testing.T) {
	conflict := InvalidTransition("accept", "cancelled")
	assert.Equal(t, CodeStateConflict, conflict.Code())
	assert.Equal(t, "cannot accept an order that is cancelled", conflict.Message())
	assert.False(t, Retryable(conflict))

	gateway := External(stdErrors.New("timeout"), "refund payment")
	assert.Equal(t, "DEPENDENCY_ERROR: refund payment: timeout", gateway.Error())
	assert.True(t, Retryable(fmt.Errorf("resolve: %w", gateway)))
	assert.True(t, IsCode(gateway, CodeInternal, CodeDependency))

	assert.True(t, Retryable(stdErrors.New("plain")), "untyped errors count as internal")
	assert.True(t, Retryable(New(CodeBusy, "row locked")))
	assert.False(t, Retryable(nil))
}

func TestDumpCapturesChain(t *testing.T) {
	d := Dump(fmt.Errorf("outer: %w", New(CodeDependency, "gateway down")))
	assert.Equal(t, CodeDependency, d.Code)
	assert.Len(t, d.Chain, 2)
	assert.Nil(t, d.Postgres)
	assert.Equal(t, ErrorDump{}, Dump(nil))
}

func TestDumpFieldsIncludePostgresDiagnostics(t *testing.T) {
	cases := map[string]error{
		"lib/pq": &pq.Error{Code: "23505", Constraint: "disputes_one_active_per_order"},
		"pgx":    &pgconn.PgError{Code: "23505", ConstraintName: "disputes_one_active_per_order"},
	}
	for name, driverErr := range cases {
		t.Run(name, func(t *testing.T) {
			err := Wrap(CodeConflict, fmt.Errorf("insert: %w", driverErr), "dispute already open")
			fields := Dump(err).Fields()
			assert.Len(t, fields["error_chain"], 3)
			assert.Equal(t, "23505", fields["pg_code"])
			assert.Equal(t, "disputes_one_active_per_order", fields["pg_constraint"])
		})
	}

	plain := Dump(stdErrors.New("boom")).Fields()
	assert.NotContains(t, plain, "error_chain")
	assert.NotContains(t, plain, "pg_code")
}
