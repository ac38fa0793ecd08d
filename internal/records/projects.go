package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const projectColumns = "project_id, assembly_id, name, updated, owner, status, created, creator, lockdate, lockowner, directory"

// ProjectStatuses is the recognized status enumeration of a project.
var ProjectStatuses = []string{"in shotgun", "prefinishing", "in finishing", "finished", "quality checked", "retired"}

func validProjectStatus(status string) bool {
	if status == "" {
		return true
	}
	for _, s := range ProjectStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func (s *Store) ListProjects(ctx context.Context, assemblyID int64) ([]Project, error) {
	query := `select ` + projectColumns + ` from PROJECT order by name`
	args := []any{}
	if assemblyID > 0 {
		query = `select ` + projectColumns + ` from PROJECT where assembly_id = ? order by name`
		args = append(args, assemblyID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id int64) (Project, error) {
	row := s.db.QueryRowContext(ctx, `select `+projectColumns+` from PROJECT where project_id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// NewProject carries the caller-supplied fields of a fresh project.
type NewProject struct {
	AssemblyID int64
	Name       string
	Owner      string
	Status     string
	Directory  string
	Creator    string
}

func (s *Store) CreateProject(ctx context.Context, in NewProject) (Project, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Project{}, fmt.Errorf("%w: project name required", ErrInvalid)
	}
	if in.AssemblyID <= 0 {
		return Project{}, fmt.Errorf("%w: assembly required", ErrInvalid)
	}
	if !validProjectStatus(in.Status) {
		return Project{}, fmt.Errorf("%w: unrecognized status %q", ErrInvalid, in.Status)
	}
	res, err := s.db.ExecContext(ctx, `
		insert into PROJECT (assembly_id, name, owner, status, directory, created, creator)
		values (?, ?, ?, ?, ?, now(), ?)
	`, in.AssemblyID, in.Name, nullString(ownerOrNobody(in.Owner)), nullString(in.Status),
		nullString(in.Directory), nullString(in.Creator))
	if err != nil {
		return Project{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Project{}, err
	}
	return s.GetProject(ctx, id)
}

// ProjectUpdate holds the mutable fields of a project. Nil fields are
// left untouched; an Owner of "nobody" clears ownership.
type ProjectUpdate struct {
	Name   *string
	Owner  *string
	Status *string
}

func (s *Store) UpdateProject(ctx context.Context, id int64, in ProjectUpdate) (Project, error) {
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return Project{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Project{}, fmt.Errorf("%w: project name required", ErrInvalid)
		}
		p.Name = name
	}
	if in.Owner != nil {
		if owner := ownerOrNobody(*in.Owner); owner == "" {
			p.Owner = nil
		} else {
			p.Owner = &owner
		}
	}
	if in.Status != nil {
		if !validProjectStatus(*in.Status) {
			return Project{}, fmt.Errorf("%w: unrecognized status %q", ErrInvalid, *in.Status)
		}
		p.Status = in.Status
	}
	_, err = s.db.ExecContext(ctx, `
		update PROJECT set name = ?, owner = ?, status = ?, updated = now()
		where project_id = ?
	`, p.Name, nullStringPtr(p.Owner), nullStringPtr(p.Status), id)
	if err != nil {
		return Project{}, err
	}
	return s.GetProject(ctx, id)
}

func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from PROJECT where project_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectContigs returns the current contigs assigned to a project.
func (s *Store) ProjectContigs(ctx context.Context, projectID int64) ([]Contig, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select contig_id, gap4name, length, nreads, created, updated, project_id
		from CURRENTCONTIGS where project_id = ? order by length desc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContigs(rows)
}

// ProjectContigSummary aggregates the current contigs of a project.
func (s *Store) ProjectContigSummary(ctx context.Context, projectID int64) (ContigSummary, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return ContigSummary{}, err
	}
	var sum ContigSummary
	var reads, total, max sql.NullInt64
	var updated sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		select count(*), sum(nreads), sum(length), max(length), max(updated)
		from CURRENTCONTIGS where project_id = ?
	`, projectID).Scan(&sum.ContigCount, &reads, &total, &max, &updated)
	if err != nil {
		return ContigSummary{}, err
	}
	sum.ReadCount = reads.Int64
	sum.TotalLength = total.Int64
	sum.MaxLength = max.Int64
	sum.LastUpdated = nullableTime(updated)
	return sum, nil
}

// ownerOrNobody maps the web UI's placeholder owner to "unowned".
func ownerOrNobody(owner string) string {
	owner = strings.TrimSpace(owner)
	if owner == "nobody" {
		return ""
	}
	return owner
}

func scanProject(row interface{ Scan(...any) error }) (Project, error) {
	var p Project
	var updated, created, lockdate sql.NullTime
	var owner, status, creator, lockowner, directory sql.NullString
	err := row.Scan(&p.ID, &p.AssemblyID, &p.Name, &updated, &owner, &status,
		&created, &creator, &lockdate, &lockowner, &directory)
	if err != nil {
		return Project{}, err
	}
	p.Updated = nullableTime(updated)
	p.Owner = nullableString(owner)
	p.Status = nullableString(status)
	p.Created = nullableTime(created)
	p.Creator = nullableString(creator)
	p.LockDate = nullableTime(lockdate)
	p.LockOwner = nullableString(lockowner)
	p.Directory = nullableString(directory)
	return p, nil
}
