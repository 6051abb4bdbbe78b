// Package datarecording stores translation traces in a SQLite database
// so that simulation runs can be inspected after the fact.
package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// A TranslationTrace is one recorded translation, one row in the trace
// table.
type TranslationTrace struct {
	ID     string
	HartIx int
	Mode   string
	VA     uint64
	PA     uint64
	Read   bool
	Write  bool
	Exec   bool
	Cause  string
}

const traceTableName = "translation_traces"

// A TraceRecorder buffers translation traces and writes them to a SQLite
// database in batches. A flush is registered with atexit, so it also runs
// when the process exits through atexit.Exit; a plain return from main or
// os.Exit does not trigger it.
type TraceRecorder struct {
	db   *sql.DB
	path string

	batchSize int
	entries   []TranslationTrace
}

// NewTraceRecorder creates a TraceRecorder writing to the given path. An
// empty path generates a unique database name. The database file must
// not already exist.
func NewTraceRecorder(path string) *TraceRecorder {
	if path == "" {
		path = "veermem_trace_" + xid.New().String()
	}
	filename := path + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	fmt.Fprintf(os.Stderr, "Recording translation traces: %s\n", filename)

	r := newTraceRecorderWithDB(db)
	r.path = filename

	return r
}

// NewTraceRecorderWithDB creates a TraceRecorder on an existing database
// connection.
func NewTraceRecorderWithDB(db *sql.DB) *TraceRecorder {
	return newTraceRecorderWithDB(db)
}

func newTraceRecorderWithDB(db *sql.DB) *TraceRecorder {
	r := &TraceRecorder{
		db:        db,
		batchSize: 100000,
	}
	r.createTable()

	atexit.Register(func() { r.Flush() })

	return r
}

// Record buffers one trace, assigning it a unique ID. The buffer is
// flushed when the batch size is reached.
func (r *TraceRecorder) Record(t TranslationTrace) {
	t.ID = xid.New().String()
	r.entries = append(r.entries, t)

	if len(r.entries) >= r.batchSize {
		r.Flush()
	}
}

// Flush writes all buffered traces to the database.
func (r *TraceRecorder) Flush() {
	if len(r.entries) == 0 {
		return
	}

	r.mustExecute("BEGIN TRANSACTION")
	defer r.mustExecute("COMMIT TRANSACTION")

	stmt := r.prepareInsert()
	defer stmt.Close()

	for _, t := range r.entries {
		fields := reflect.ValueOf(t)
		values := make([]any, 0, fields.NumField())
		for i := 0; i < fields.NumField(); i++ {
			values = append(values, fields.Field(i).Interface())
		}

		if _, err := stmt.Exec(values...); err != nil {
			panic(err)
		}
	}

	r.entries = nil
}

// Path returns the database file backing the recorder, or an empty
// string when it was created on an existing connection.
func (r *TraceRecorder) Path() string {
	return r.path
}

func (r *TraceRecorder) createTable() {
	fields := strings.Join(structs.Names(TranslationTrace{}), ", \n\t")
	r.mustExecute(`CREATE TABLE ` + traceTableName +
		` (` + "\n\t" + fields + "\n" + `);`)
}

func (r *TraceRecorder) prepareInsert() *sql.Stmt {
	marks := structs.Names(TranslationTrace{})
	for i := range marks {
		marks[i] = "?"
	}

	stmt, err := r.db.Prepare("INSERT INTO " + traceTableName +
		" VALUES (" + strings.Join(marks, ", ") + ")")
	if err != nil {
		panic(err)
	}

	return stmt
}

func (r *TraceRecorder) mustExecute(query string) sql.Result {
	res, err := r.db.Exec(query)
	if err != nil {
		fmt.Printf("Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}
