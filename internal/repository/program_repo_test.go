package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"laserctl/internal/models"
)

func newProgramMock(t *testing.T) (*ProgramSQLite, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	cleanup := func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Fatalf("mock expectations: %v", err)
		}
		_ = db.Close()
	}
	return NewProgramSQLite(db), mock, cleanup
}

func TestProgramSave_AssignsID(t *testing.T) {
	t.Parallel()
	repo, mock, cleanup := newProgramMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO programs").
		WithArgs(sqlmock.AnyArg(), "evening run", true, models.ModeEveryday,
			"16:30", "16:50", 60000, 60000, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Save(context.Background(), models.Program{
		Name: "evening run", Enabled: true, Mode: models.ModeEveryday,
		Start: "16:30", End: "16:50", FireMs: 60000, RestMs: 60000,
		Dates: []string{"2026-03-04"},
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestProgramGet_NotFound(t *testing.T) {
	t.Parallel()
	repo, mock, cleanup := newProgramMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT .+ FROM programs WHERE id").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "enabled", "mode", "start_hhmm", "end_hhmm", "fire_ms", "rest_ms", "once_date", "dates"}))

	_, err := repo.Get(context.Background(), "missing")
	if !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("want ErrProgramNotFound, got %v", err)
	}
}

func TestProgramList_DecodesDates(t *testing.T) {
	t.Parallel()
	repo, mock, cleanup := newProgramMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "name", "enabled", "mode", "start_hhmm", "end_hhmm", "fire_ms", "rest_ms", "once_date", "dates"}).
		AddRow("p1", "a", true, models.ModeSelectDay, "08:00", "09:00", 1000, 1000, nil, `["2026-03-04","2026-03-10"]`).
		AddRow("p2", "b", false, models.ModeOnce, "23:00", "01:00", 5000, 5000, "2026-03-05", nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectProgramsSQL)).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 programs, got %d", len(got))
	}
	if len(got[0].Dates) != 2 || got[0].Dates[0] != "2026-03-04" {
		t.Fatalf("dates not decoded: %+v", got[0].Dates)
	}
	if got[1].OnceDate != "2026-03-05" {
		t.Fatalf("once_date not decoded: %q", got[1].OnceDate)
	}
}

func TestProgramDelete(t *testing.T) {
	t.Parallel()
	repo, mock, cleanup := newProgramMock(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM programs").
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM programs").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := repo.Delete(context.Background(), "gone"); !errors.Is(err, ErrProgramNotFound) {
		t.Fatalf("want ErrProgramNotFound, got %v", err)
	}
}
