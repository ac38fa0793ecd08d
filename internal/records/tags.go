package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const contigTagColumns = "tag_id, tagtype, systematic_id, tagcomment"

func (s *Store) ListContigTags(ctx context.Context) ([]ContigTag, error) {
	rows, err := s.db.QueryContext(ctx, `select `+contigTagColumns+` from CONTIGTAG order by tag_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []ContigTag
	for rows.Next() {
		t, err := scanContigTag(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *Store) GetContigTag(ctx context.Context, id int64) (ContigTag, error) {
	row := s.db.QueryRowContext(ctx, `select `+contigTagColumns+` from CONTIGTAG where tag_id = ?`, id)
	t, err := scanContigTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ContigTag{}, ErrNotFound
	}
	return t, err
}

// FindContigTagBySystematicID resolves a tag by its systematic name, the
// way curators usually address tags.
func (s *Store) FindContigTagBySystematicID(ctx context.Context, systematicID string) (ContigTag, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+contigTagColumns+` from CONTIGTAG where systematic_id = ?
	`, systematicID)
	t, err := scanContigTag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ContigTag{}, ErrNotFound
	}
	return t, err
}

// NewContigTag carries the caller-supplied fields of a fresh tag.
type NewContigTag struct {
	TagType      string
	SystematicID string
	Comment      string
}

func (s *Store) CreateContigTag(ctx context.Context, in NewContigTag) (ContigTag, error) {
	in.TagType = strings.TrimSpace(in.TagType)
	if in.TagType == "" {
		return ContigTag{}, fmt.Errorf("%w: tag type required", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `
		insert into CONTIGTAG (tagtype, systematic_id, tagcomment) values (?, ?, ?)
	`, in.TagType, nullString(in.SystematicID), nullString(in.Comment))
	if err != nil {
		return ContigTag{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return ContigTag{}, err
	}
	return s.GetContigTag(ctx, id)
}

// FindOrCreateContigTag resolves a tag by systematic id and type,
// creating it when absent.
func (s *Store) FindOrCreateContigTag(ctx context.Context, systematicID, tagType string) (ContigTag, error) {
	row := s.db.QueryRowContext(ctx, `
		select `+contigTagColumns+` from CONTIGTAG where systematic_id = ? and tagtype = ?
	`, systematicID, tagType)
	t, err := scanContigTag(row)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return ContigTag{}, err
	}
	return s.CreateContigTag(ctx, NewContigTag{TagType: tagType, SystematicID: systematicID})
}

func (s *Store) UpdateContigTag(ctx context.Context, id int64, in NewContigTag) (ContigTag, error) {
	in.TagType = strings.TrimSpace(in.TagType)
	if in.TagType == "" {
		return ContigTag{}, fmt.Errorf("%w: tag type required", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `
		update CONTIGTAG set tagtype = ?, systematic_id = ?, tagcomment = ? where tag_id = ?
	`, in.TagType, nullString(in.SystematicID), nullString(in.Comment), id)
	if err != nil {
		return ContigTag{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetContigTag(ctx, id); err != nil {
			return ContigTag{}, err
		}
	}
	return s.GetContigTag(ctx, id)
}

func (s *Store) DeleteContigTag(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from CONTIGTAG where tag_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const tagMappingColumns = "id, contig_id, tag_id, cstart, cfinal, strand, comment"

// ContigTagMappings lists the tag placements on one contig ordered by
// start position, each joined with its tag.
func (s *Store) ContigTagMappings(ctx context.Context, contigID int64) ([]TagMapping, error) {
	if _, err := s.GetContig(ctx, contigID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		select T2C.id, T2C.contig_id, T2C.tag_id, T2C.cstart, T2C.cfinal, T2C.strand, T2C.comment,
		       CT.tagtype, CT.systematic_id, CT.tagcomment
		from TAG2CONTIG T2C
		left join CONTIGTAG CT using (tag_id)
		where T2C.contig_id = ?
		order by T2C.cstart asc
	`, contigID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []TagMapping
	for rows.Next() {
		var m TagMapping
		var strand, comment, tagType, systematicID, tagComment sql.NullString
		err := rows.Scan(&m.ID, &m.ContigID, &m.TagID, &m.Start, &m.Final,
			&strand, &comment, &tagType, &systematicID, &tagComment)
		if err != nil {
			return nil, err
		}
		m.Strand = nullableString(strand)
		m.Comment = nullableString(comment)
		if tagType.Valid {
			m.Tag = &ContigTag{
				ID:           m.TagID,
				TagType:      tagType.String,
				SystematicID: nullableString(systematicID),
				Comment:      nullableString(tagComment),
			}
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// CurrentTagMappings lists the placements of one tag on current contigs.
func (s *Store) CurrentTagMappings(ctx context.Context, tagID int64) ([]TagMapping, error) {
	rows, err := s.db.QueryContext(ctx, `
		select T2C.id, T2C.contig_id, T2C.tag_id, T2C.cstart, T2C.cfinal, T2C.strand, T2C.comment
		from TAG2CONTIG T2C, CURRENTCONTIGS CC
		where T2C.tag_id = ? and T2C.contig_id = CC.contig_id
		order by T2C.cstart asc
	`, tagID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTagMappings(rows)
}

func (s *Store) GetTagMapping(ctx context.Context, id int64) (TagMapping, error) {
	row := s.db.QueryRowContext(ctx, `select `+tagMappingColumns+` from TAG2CONTIG where id = ?`, id)
	m, err := scanTagMapping(row)
	if errors.Is(err, sql.ErrNoRows) {
		return TagMapping{}, ErrNotFound
	}
	return m, err
}

// NewTagMapping places a tag on a contig range. TagID may be zero when
// SystematicID and TagType identify (or should create) the tag.
type NewTagMapping struct {
	ContigID     int64
	TagID        int64
	SystematicID string
	TagType      string
	Start        int64
	Final        int64
	Strand       string
	Comment      string
}

func (s *Store) CreateTagMapping(ctx context.Context, in NewTagMapping) (TagMapping, error) {
	if in.ContigID <= 0 {
		return TagMapping{}, fmt.Errorf("%w: contig required", ErrInvalid)
	}
	if in.Start <= 0 || in.Final < in.Start {
		return TagMapping{}, fmt.Errorf("%w: bad range %d..%d", ErrInvalid, in.Start, in.Final)
	}
	if _, err := s.GetContig(ctx, in.ContigID); err != nil {
		return TagMapping{}, err
	}
	if in.TagID == 0 {
		if in.TagType == "" {
			return TagMapping{}, fmt.Errorf("%w: tag or tag type required", ErrInvalid)
		}
		tag, err := s.FindOrCreateContigTag(ctx, in.SystematicID, in.TagType)
		if err != nil {
			return TagMapping{}, err
		}
		in.TagID = tag.ID
	}
	res, err := s.db.ExecContext(ctx, `
		insert into TAG2CONTIG (contig_id, tag_id, cstart, cfinal, strand, comment)
		values (?, ?, ?, ?, ?, ?)
	`, in.ContigID, in.TagID, in.Start, in.Final, nullString(in.Strand), nullString(in.Comment))
	if err != nil {
		return TagMapping{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return TagMapping{}, err
	}
	return s.GetTagMapping(ctx, id)
}

func (s *Store) UpdateTagMapping(ctx context.Context, id int64, start, final int64) (TagMapping, error) {
	if start <= 0 || final < start {
		return TagMapping{}, fmt.Errorf("%w: bad range %d..%d", ErrInvalid, start, final)
	}
	res, err := s.db.ExecContext(ctx, `
		update TAG2CONTIG set cstart = ?, cfinal = ? where id = ?
	`, start, final, id)
	if err != nil {
		return TagMapping{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetTagMapping(ctx, id); err != nil {
			return TagMapping{}, err
		}
	}
	return s.GetTagMapping(ctx, id)
}

func (s *Store) DeleteTagMapping(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from TAG2CONTIG where id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func collectTagMappings(rows *sql.Rows) ([]TagMapping, error) {
	var res []TagMapping
	for rows.Next() {
		m, err := scanTagMapping(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func scanContigTag(row interface{ Scan(...any) error }) (ContigTag, error) {
	var t ContigTag
	var systematicID, comment sql.NullString
	if err := row.Scan(&t.ID, &t.TagType, &systematicID, &comment); err != nil {
		return ContigTag{}, err
	}
	t.SystematicID = nullableString(systematicID)
	t.Comment = nullableString(comment)
	return t, nil
}

func scanTagMapping(row interface{ Scan(...any) error }) (TagMapping, error) {
	var m TagMapping
	var strand, comment sql.NullString
	if err := row.Scan(&m.ID, &m.ContigID, &m.TagID, &m.Start, &m.Final, &strand, &comment); err != nil {
		return TagMapping{}, err
	}
	m.Strand = nullableString(strand)
	m.Comment = nullableString(comment)
	return m, nil
}
