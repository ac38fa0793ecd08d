package records

import (
	"context"
	"database/sql"
	"errors"
)

const contigColumns = "contig_id, gap4name, length, nreads, created, updated, project_id"

// CurrentContigs lists the current generation of contigs, optionally
// filtered to a minimum length.
func (s *Store) CurrentContigs(ctx context.Context, minLength int64) ([]Contig, error) {
	query := `select ` + contigColumns + ` from CURRENTCONTIGS order by length desc`
	args := []any{}
	if minLength > 0 {
		query = `select ` + contigColumns + ` from CURRENTCONTIGS where length >= ? order by length desc`
		args = append(args, minLength)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectContigs(rows)
}

func (s *Store) GetContig(ctx context.Context, id int64) (Contig, error) {
	row := s.db.QueryRowContext(ctx, `select `+contigColumns+` from CONTIG where contig_id = ?`, id)
	c, err := scanContig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Contig{}, ErrNotFound
	}
	return c, err
}

func collectContigs(rows *sql.Rows) ([]Contig, error) {
	var res []Contig
	for rows.Next() {
		c, err := scanContig(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func scanContig(row interface{ Scan(...any) error }) (Contig, error) {
	var c Contig
	var gap4name sql.NullString
	var created, updated sql.NullTime
	var projectID sql.NullInt64
	if err := row.Scan(&c.ID, &gap4name, &c.Length, &c.ReadCount, &created, &updated, &projectID); err != nil {
		return Contig{}, err
	}
	c.Gap4Name = nullableString(gap4name)
	c.Created = nullableTime(created)
	c.Updated = nullableTime(updated)
	c.ProjectID = projectID.Int64
	return c, nil
}
