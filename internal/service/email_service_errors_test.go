package service_test

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meetflow/meetflow-api/internal/domain"
	"github.com/meetflow/meetflow-api/internal/events"
	"github.com/meetflow/meetflow-api/internal/service"
	"github.com/meetflow/meetflow-api/internal/store"
	"github.com/meetflow/meetflow-api/internal/task"
)

func TestNewEmailServiceError_SentinelPassthrough(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "service not found sentinel returned directly",
			err:  service.ErrEmailNotFound,
			want: service.ErrEmailNotFound,
		},
		{
			name: "store not found mapped to service sentinel",
			err:  store.ErrEmailNotFound,
			want: service.ErrEmailNotFound,
		},
		{
			name: "store retry conflict mapped to retry not allowed",
			err:  store.ErrRetryConflict,
			want: service.ErrRetryNotAllowed,
		},
		{
			name: "domain empty body mapped to service sentinel",
			err:  domain.ErrEmptyEmailBody,
			want: service.ErrEmptyEmailBody,
		},
		{
			name: "wrapped store sentinel still mapped",
			err:  errors.Join(errors.New("outer"), store.ErrEmailNotFound),
			want: service.ErrEmailNotFound,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := service.NewEmailServiceError("test_op", "test message", tc.err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewEmailServiceError_WrapsUnknownErrors(t *testing.T) {
	t.Parallel()

	underlying := errors.New("database exploded")
	err := service.NewEmailServiceError("ingest_email", "failed to save", underlying)

	require.Error(t, err)

	var svcErr *service.EmailServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "ingest_email", svcErr.Operation)
	assert.Equal(t, "failed to save", svcErr.Message)
	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "email service ingest_email failed")
	assert.Contains(t, err.Error(), "database exploded")
}

func TestNewEmailServiceError_NilError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, service.NewEmailServiceError("op", "message", nil))
}

func TestNewEmailService_ValidatesDependencies(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := events.NewInMemoryEventEmitter(logger)
	emailStore := &task.MockEmailStore{}
	db := &sql.DB{}

	tests := []struct {
		name    string
		db      *sql.DB
		store   store.EmailStore
		emitter events.EventEmitter
		logger  *slog.Logger
	}{
		{name: "nil db", store: emailStore, emitter: emitter, logger: logger},
		{name: "nil store", db: db, emitter: emitter, logger: logger},
		{name: "nil emitter", db: db, store: emailStore, logger: logger},
		{name: "nil logger", db: db, store: emailStore, emitter: emitter},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc, err := service.NewEmailService(tc.db, tc.store, tc.emitter, tc.logger)
			assert.Nil(t, svc)
			require.Error(t, err)

			var svcErr *service.EmailServiceError
			assert.ErrorAs(t, err, &svcErr)
		})
	}

	t.Run("all dependencies present", func(t *testing.T) {
		t.Parallel()

		svc, err := service.NewEmailService(db, emailStore, emitter, logger)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}
