package datarecording

import (
	"os"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/coalesce/analysis"
)

// Table names.
const (
	RunsTable     = "runs"
	AccessesTable = "accesses"
)

// RunEntry describes one analysis of one kernel.
type RunEntry struct {
	RunID          string
	Kernel         string
	Warps          int
	LoopMultiplier bool
	Command        string
	StartTime      string
}

// AccessRow is the stored form of an analysis.AccessEntry.
type AccessRow struct {
	RunID        string
	Position     int
	Kind         string
	AddressSpace string
	Block        string
	Instruction  string
	Metric       string
	Value        int64
}

// AccessRecorder records the accesses of analysis runs. It implements
// analysis.AccessSink.
type AccessRecorder struct {
	recorder DataRecorder
	run      RunEntry
}

// NewAccessRecorder creates the tables if needed and records the run. The
// run gets a unique id, the command line and the current time when they
// are not set.
func NewAccessRecorder(recorder DataRecorder, run RunEntry) *AccessRecorder {
	setupTables(recorder)

	if run.RunID == "" {
		run.RunID = xid.New().String()
	}

	if run.Command == "" {
		run.Command = strings.Join(os.Args, " ")
	}

	if run.StartTime == "" {
		run.StartTime = time.Now().Format("2006-01-02 15:04:05.000000000")
	}

	recorder.InsertData(RunsTable, run)

	return &AccessRecorder{
		recorder: recorder,
		run:      run,
	}
}

func setupTables(recorder DataRecorder) {
	existing := make(map[string]bool)
	for _, t := range recorder.ListTables() {
		existing[t] = true
	}

	if !existing[RunsTable] {
		recorder.CreateTable(RunsTable, RunEntry{})
	}

	if !existing[AccessesTable] {
		recorder.CreateTable(AccessesTable, AccessRow{})
	}
}

// Run returns the recorded run.
func (r *AccessRecorder) Run() RunEntry {
	return r.run
}

// AddAccess buffers the result of one access.
func (r *AccessRecorder) AddAccess(entry analysis.AccessEntry) {
	r.recorder.InsertData(AccessesTable, AccessRow{
		RunID:        r.run.RunID,
		Position:     entry.Position,
		Kind:         entry.Kind,
		AddressSpace: entry.AddressSpace,
		Block:        entry.Block,
		Instruction:  entry.Instruction,
		Metric:       entry.Metric,
		Value:        entry.Value,
	})
}

// Flush writes the buffered results into the database.
func (r *AccessRecorder) Flush() {
	r.recorder.Flush()
}

// OpenRuns opens a database written by AccessRecorders for reading.
func OpenRuns(dbFilename string) (DataReader, error) {
	reader, err := NewReader(dbFilename)
	if err != nil {
		return nil, err
	}

	reader.MapTable(RunsTable, RunEntry{})
	reader.MapTable(AccessesTable, AccessRow{})

	return reader, nil
}
