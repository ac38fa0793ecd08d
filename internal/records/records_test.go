package records

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func assemblyRow(id int64, name string) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{"assembly_id", "name", "updated", "created", "creator"}).
		AddRow(id, name, now, now, "alice")
}

func TestListAssemblies(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("select .* from ASSEMBLY order by name").
		WillReturnRows(assemblyRow(1, "Pfalciparum").AddRow(2, "Tbrucei", nil, nil, nil))

	got, err := store.ListAssemblies(context.Background(), false)
	if err != nil {
		t.Fatalf("ListAssemblies: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Pfalciparum" {
		t.Fatalf("unexpected assemblies %+v", got)
	}
	if got[1].Creator != nil {
		t.Fatal("null creator must stay nil")
	}
}

func TestGetAssemblyMissIsNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery("select .* from ASSEMBLY where assembly_id").
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.GetAssembly(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateAssemblyRequiresName(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.CreateAssembly(context.Background(), NewAssembly{Name: "  "})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestUpdateProjectClearsNobodyOwner(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	projectRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"project_id", "assembly_id", "name", "updated", "owner", "status",
			"created", "creator", "lockdate", "lockowner", "directory",
		}).AddRow(7, 1, "chr1", now, "alice", "in finishing", now, "alice", nil, nil, nil)
	}
	mock.ExpectQuery("select .* from PROJECT where project_id").
		WithArgs(int64(7)).
		WillReturnRows(projectRows())
	mock.ExpectExec("update PROJECT set").
		WithArgs("chr1", sql.NullString{}, "in finishing", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("select .* from PROJECT where project_id").
		WithArgs(int64(7)).
		WillReturnRows(projectRows())

	owner := "nobody"
	_, err := store.UpdateProject(context.Background(), 7, ProjectUpdate{Owner: &owner})
	if err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("owner 'nobody' must persist as NULL: %v", err)
	}
}

func TestUpdateProjectRejectsUnknownStatus(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from PROJECT where project_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "assembly_id", "name", "updated", "owner", "status",
			"created", "creator", "lockdate", "lockowner", "directory",
		}).AddRow(7, 1, "chr1", now, nil, nil, now, nil, nil, nil, nil))

	bad := "cancelled"
	_, err := store.UpdateProject(context.Background(), 7, ProjectUpdate{Status: &bad})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestCurrentContigsAppliesMinLength(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from CURRENTCONTIGS where length >=").
		WithArgs(int64(5000)).
		WillReturnRows(sqlmock.NewRows([]string{
			"contig_id", "gap4name", "length", "nreads", "created", "updated", "project_id",
		}).AddRow(11, "ctg0001", 84211, 1203, now, now, 7))

	got, err := store.CurrentContigs(context.Background(), 5000)
	if err != nil {
		t.Fatalf("CurrentContigs: %v", err)
	}
	if len(got) != 1 || got[0].Length != 84211 {
		t.Fatalf("unexpected contigs %+v", got)
	}
}

func TestProjectContigSummaryEmptyProject(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from PROJECT where project_id").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"project_id", "assembly_id", "name", "updated", "owner", "status",
			"created", "creator", "lockdate", "lockowner", "directory",
		}).AddRow(7, 1, "chr1", now, nil, nil, now, nil, nil, nil, nil))
	mock.ExpectQuery(`select count\(\*\), sum\(nreads\)`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count", "reads", "total", "max", "updated"}).
			AddRow(0, nil, nil, nil, nil))

	sum, err := store.ProjectContigSummary(context.Background(), 7)
	if err != nil {
		t.Fatalf("ProjectContigSummary: %v", err)
	}
	if sum.ContigCount != 0 || sum.TotalLength != 0 || sum.LastUpdated != nil {
		t.Fatalf("empty project must aggregate to zeros, got %+v", sum)
	}
}

func TestContigTagMappingsOrderedWithTag(t *testing.T) {
	store, mock := newTestStore(t)
	now := time.Now().UTC()
	mock.ExpectQuery("select .* from CONTIG where contig_id").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{
			"contig_id", "gap4name", "length", "nreads", "created", "updated", "project_id",
		}).AddRow(11, "ctg0001", 84211, 1203, now, now, 7))
	mock.ExpectQuery("from TAG2CONTIG T2C").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "contig_id", "tag_id", "cstart", "cfinal", "strand", "comment",
			"tagtype", "systematic_id", "tagcomment",
		}).AddRow(1, 11, 3, 100, 250, "F", nil, "REPT", "SPBC409.08", "repeat region"))

	got, err := store.ContigTagMappings(context.Background(), 11)
	if err != nil {
		t.Fatalf("ContigTagMappings: %v", err)
	}
	if len(got) != 1 || got[0].Tag == nil || got[0].Tag.TagType != "REPT" {
		t.Fatalf("mapping must carry its tag, got %+v", got)
	}
}

func TestCreateTagMappingRejectsBadRange(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.CreateTagMapping(context.Background(), NewTagMapping{
		ContigID: 11, TagID: 3, Start: 500, Final: 100,
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for inverted range, got %v", err)
	}
}

func TestListUsersExcludesAssemblerRole(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectQuery(`select username, role from users\s+where role is null or role != 'assembler'`).
		WillReturnRows(sqlmock.NewRows([]string{"username", "role"}).
			AddRow("alice", "finisher").
			AddRow("bob", nil))

	got, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(got) != 2 || got[1].Role != nil {
		t.Fatalf("unexpected users %+v", got)
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	store, _ := newTestStore(t)
	if _, err := store.CreateUser(context.Background(), "carol", "wizard"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestCreateUserMapsNoneRoleToNull(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("insert into users").
		WithArgs("carol", sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(1, 1))

	u, err := store.CreateUser(context.Background(), "carol", "none")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.Role != nil {
		t.Fatalf("role 'none' must store as NULL, got %+v", u)
	}
}

func TestDeleteProjectMissIsNotFound(t *testing.T) {
	store, mock := newTestStore(t)
	mock.ExpectExec("delete from PROJECT").
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteProject(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
