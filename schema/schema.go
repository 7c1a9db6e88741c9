// Package schema declares the collections and secondary indexes every
// backend maintains. Backends translate the declarations into their own
// primitives from Migrate and run them through Plan against the indexes
// they already hold: an existing index with the same key specification
// and uniqueness is kept whatever its name, and one that shares a name or
// key but differs otherwise fails Migrate with jobrepo.ErrIndexConflict.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/jobrepo"
)

// Collection names a logical record set.
type Collection string

const (
	JobInstance   Collection = "JOB_INSTANCE"
	JobExecution  Collection = "JOB_EXECUTION"
	StepExecution Collection = "STEP_EXECUTION"
	Sequences     Collection = "SEQUENCES"
)

// Collections returns every collection in creation order.
func Collections() []Collection {
	return []Collection{JobInstance, JobExecution, StepExecution, Sequences}
}

// Table returns the SQL table name for c.
func (c Collection) Table() string {
	return strings.ToLower(string(c))
}

// Field is one key of an index.
type Field struct {
	// Name is the document field name.
	Name string
	// Column is the SQL column name.
	Column string
	// Desc orders the key descending.
	Desc bool
}

// Index is a declared secondary index.
type Index struct {
	Collection Collection
	Name       string
	Fields     []Field
	Unique     bool
}

// Key renders the key specification over document field names, e.g.
// "jobName:1,jobKey:1".
func (i Index) Key() string {
	parts := make([]string, len(i.Fields))
	for n, f := range i.Fields {
		parts[n] = keyPart(f.Name, f.Desc)
	}
	return strings.Join(parts, ",")
}

// ColumnKey renders the key specification over SQL column names, e.g.
// "job_name:1,job_key:1".
func (i Index) ColumnKey() string {
	parts := make([]string, len(i.Fields))
	for n, f := range i.Fields {
		parts[n] = keyPart(f.Column, f.Desc)
	}
	return strings.Join(parts, ",")
}

// Existing describes an index a backend already holds. Key is rendered
// the way Index.Key or Index.ColumnKey renders it.
type Existing struct {
	Name   string
	Key    string
	Unique bool
}

func keyPart(name string, desc bool) string {
	if desc {
		return name + ":-1"
	}
	return name + ":1"
}

// KeyOf renders an existing index key from its ordered parts.
func KeyOf(names []string, desc []bool) string {
	parts := make([]string, len(names))
	for n := range names {
		parts[n] = keyPart(names[n], n < len(desc) && desc[n])
	}
	return strings.Join(parts, ",")
}

// Plan returns the declared indexes that still have to be created given
// the existing indexes of the same collection. key renders a declared
// index the way the backend rendered the existing ones.
func Plan(declared []Index, existing []Existing, key func(Index) string) ([]Index, error) {
	var out []Index
next:
	for _, idx := range declared {
		k := key(idx)
		for _, ex := range existing {
			switch {
			case ex.Key == k && ex.Unique == idx.Unique:
				continue next
			case ex.Key == k:
				return nil, fmt.Errorf("%w: %s on %s has key %s with unique=%t, want unique=%t",
					jobrepo.ErrIndexConflict, ex.Name, idx.Collection, k, ex.Unique, idx.Unique)
			case ex.Name == idx.Name:
				return nil, fmt.Errorf("%w: %s on %s has key %s unique=%t, want %s unique=%t",
					jobrepo.ErrIndexConflict, ex.Name, idx.Collection, ex.Key, ex.Unique, k, idx.Unique)
			}
		}
		out = append(out, idx)
	}
	return out, nil
}

var (
	fieldID             = Field{Name: "id", Column: "id"}
	fieldIDDesc         = Field{Name: "id", Column: "id", Desc: true}
	fieldJobName        = Field{Name: "jobName", Column: "job_name"}
	fieldJobKey         = Field{Name: "jobKey", Column: "job_key"}
	fieldJobInstanceID  = Field{Name: "jobInstanceId", Column: "job_instance_id"}
	fieldJobExecutionID = Field{Name: "jobExecutionId", Column: "job_execution_id"}
	fieldStatus         = Field{Name: "status", Column: "status"}
)

var indexes = []Index{
	{Collection: JobInstance, Name: "job_instance_name_idx", Fields: []Field{fieldJobName}},
	{Collection: JobInstance, Name: "job_instance_name_key_uq", Fields: []Field{fieldJobName, fieldJobKey}, Unique: true},
	{Collection: JobInstance, Name: "job_instance_id_desc_idx", Fields: []Field{fieldIDDesc}},
	{Collection: JobExecution, Name: "job_execution_id_idx", Fields: []Field{fieldID}},
	{Collection: JobExecution, Name: "job_execution_instance_idx", Fields: []Field{fieldJobInstanceID}},
	{Collection: JobExecution, Name: "job_execution_instance_status_idx", Fields: []Field{fieldJobInstanceID, fieldStatus}},
	{Collection: StepExecution, Name: "step_execution_id_idx", Fields: []Field{fieldID}},
	{Collection: StepExecution, Name: "step_execution_job_execution_idx", Fields: []Field{fieldJobExecutionID}},
}

// Indexes returns all declared indexes.
func Indexes() []Index {
	out := make([]Index, len(indexes))
	copy(out, indexes)
	return out
}

// IndexesFor returns the indexes declared on c.
func IndexesFor(c Collection) []Index {
	var out []Index
	for _, idx := range indexes {
		if idx.Collection == c {
			out = append(out, idx)
		}
	}
	return out
}

// CreateSQL renders a CREATE INDEX statement. IF NOT EXISTS only guards
// against a concurrent migration creating the same name; equivalent
// indexes under other names are filtered out by Plan beforehand.
func CreateSQL(idx Index) string {
	cols := make([]string, len(idx.Fields))
	for n, f := range idx.Fields {
		cols[n] = f.Column
		if f.Desc {
			cols[n] += " DESC"
		}
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, idx.Name, idx.Collection.Table(), strings.Join(cols, ", "))
}

// Inspector reports the indexes a backend currently holds, keyed by
// collection. Names are sorted.
type Inspector interface {
	ListIndexes(ctx context.Context) (map[Collection][]string, error)
}
