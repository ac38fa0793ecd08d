package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const assemblyColumns = "assembly_id, name, updated, created, creator"

// ListAssemblies returns every assembly, or only those with current
// contigs when onlyCurrent is set.
func (s *Store) ListAssemblies(ctx context.Context, onlyCurrent bool) ([]Assembly, error) {
	query := `select ` + assemblyColumns + ` from ASSEMBLY order by name`
	if onlyCurrent {
		query = `
			select distinct A.assembly_id, A.name, A.updated, A.created, A.creator
			from ASSEMBLY A
			join PROJECT P on P.assembly_id = A.assembly_id
			join CURRENTCONTIGS CC on CC.project_id = P.project_id
			order by A.name`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Assembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *Store) GetAssembly(ctx context.Context, id int64) (Assembly, error) {
	row := s.db.QueryRowContext(ctx, `select `+assemblyColumns+` from ASSEMBLY where assembly_id = ?`, id)
	a, err := scanAssembly(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Assembly{}, ErrNotFound
	}
	return a, err
}

// NewAssembly carries the caller-supplied fields of a fresh assembly.
type NewAssembly struct {
	Name    string
	Creator string
}

func (s *Store) CreateAssembly(ctx context.Context, in NewAssembly) (Assembly, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Assembly{}, fmt.Errorf("%w: assembly name required", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `
		insert into ASSEMBLY (name, created, creator) values (?, now(), ?)
	`, in.Name, nullString(in.Creator))
	if err != nil {
		return Assembly{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Assembly{}, err
	}
	return s.GetAssembly(ctx, id)
}

func (s *Store) UpdateAssembly(ctx context.Context, id int64, name string) (Assembly, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Assembly{}, fmt.Errorf("%w: assembly name required", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `
		update ASSEMBLY set name = ?, updated = now() where assembly_id = ?
	`, name, id)
	if err != nil {
		return Assembly{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetAssembly(ctx, id); err != nil {
			return Assembly{}, err
		}
	}
	return s.GetAssembly(ctx, id)
}

func (s *Store) DeleteAssembly(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from ASSEMBLY where assembly_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssembly(row interface{ Scan(...any) error }) (Assembly, error) {
	var a Assembly
	var updated, created sql.NullTime
	var creator sql.NullString
	if err := row.Scan(&a.ID, &a.Name, &updated, &created, &creator); err != nil {
		return Assembly{}, err
	}
	a.Updated = nullableTime(updated)
	a.Created = nullableTime(created)
	a.Creator = nullableString(creator)
	return a, nil
}
