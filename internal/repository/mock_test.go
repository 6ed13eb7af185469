package repository

import (
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/spec-kit/idea-service/internal/domain"
)

var ideaColumns = []string{
	"id", "customer_id", "name", "title", "description", "status",
	"assigned_to", "created_at", "updated_at",
}

func newMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool() error: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		mock.Close()
	})
	return mock
}

func ideaRow(id string, status domain.IdeaStatus, assignedTo *string, at time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(ideaColumns).
		AddRow(id, "cust-1", "Cara", "Dark mode", "please", status, assignedTo, at, at)
}

func ptr(s string) *string {
	return &s
}
