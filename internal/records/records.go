// Package records is a thin typed layer over a bound tenant database.
// Every query is parameterized; there is no query builder and no caching,
// callers get exactly the rows the assembly schema holds.
package records

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrInvalid  = errors.New("invalid record")
)

// Store runs record queries against a single tenant connection.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Assembly is one row of the ASSEMBLY table.
type Assembly struct {
	ID      int64      `json:"assembly_id"`
	Name    string     `json:"name"`
	Updated *time.Time `json:"updated,omitempty"`
	Created *time.Time `json:"created,omitempty"`
	Creator *string    `json:"creator,omitempty"`
}

// Project is one row of the PROJECT table. Owner is nil for unowned
// projects (the "nobody" owner of the web UI).
type Project struct {
	ID         int64      `json:"project_id"`
	AssemblyID int64      `json:"assembly_id"`
	Name       string     `json:"name"`
	Updated    *time.Time `json:"updated,omitempty"`
	Owner      *string    `json:"owner,omitempty"`
	Status     *string    `json:"status,omitempty"`
	Created    *time.Time `json:"created,omitempty"`
	Creator    *string    `json:"creator,omitempty"`
	LockDate   *time.Time `json:"lockdate,omitempty"`
	LockOwner  *string    `json:"lockowner,omitempty"`
	Directory  *string    `json:"directory,omitempty"`
}

// Contig is one row of CONTIG (or the CURRENTCONTIGS view).
type Contig struct {
	ID        int64      `json:"contig_id"`
	Gap4Name  *string    `json:"gap4name,omitempty"`
	Length    int64      `json:"length"`
	ReadCount int64      `json:"nreads"`
	Created   *time.Time `json:"created,omitempty"`
	Updated   *time.Time `json:"updated,omitempty"`
	ProjectID int64      `json:"project_id"`
}

// ContigSummary aggregates the current contigs of a project.
type ContigSummary struct {
	ContigCount int64      `json:"contig_count"`
	ReadCount   int64      `json:"read_count"`
	TotalLength int64      `json:"total_length"`
	MaxLength   int64      `json:"max_length"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// ContigTag is one row of CONTIGTAG.
type ContigTag struct {
	ID           int64   `json:"tag_id"`
	TagType      string  `json:"tagtype"`
	SystematicID *string `json:"systematic_id,omitempty"`
	Comment      *string `json:"tagcomment,omitempty"`
}

// TagMapping is one row of TAG2CONTIG: a tag placed on a contig range.
type TagMapping struct {
	ID       int64   `json:"id"`
	ContigID int64   `json:"contig_id"`
	TagID    int64   `json:"tag_id"`
	Start    int64   `json:"cstart"`
	Final    int64   `json:"cfinal"`
	Strand   *string `json:"strand,omitempty"`
	Comment  *string `json:"comment,omitempty"`
	Tag      *ContigTag `json:"tag,omitempty"`
}
