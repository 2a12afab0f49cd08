package analysis

import (
	"encoding/csv"
	"log"
	"os"
	"strconv"
)

// AccessEntry is the result of the analysis of one memory access.
type AccessEntry struct {
	Position     int
	Kind         string
	AddressSpace string
	Block        string
	Instruction  string
	Metric       string
	Value        int64
}

// AccessSink is the interface that provides the service that can record
// the analyzed accesses.
type AccessSink interface {
	AddAccess(entry AccessEntry)
	Flush()
}

// CSVSink is an AccessSink that writes the entries to a CSV file.
type CSVSink struct {
	file      *os.File
	csvWriter *csv.Writer
}

// NewCSVSink creates the CSV file filename.csv and writes its header.
func NewCSVSink(filename string) (*CSVSink, error) {
	f, err := os.OpenFile(filename+".csv",
		os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}

	s := &CSVSink{
		file:      f,
		csvWriter: csv.NewWriter(f),
	}

	header := []string{
		"Position", "Kind", "AddressSpace", "Block", "Instruction",
		"Metric", "Value",
	}

	if err := s.csvWriter.Write(header); err != nil {
		f.Close()
		return nil, err
	}

	return s, nil
}

// AddAccess appends an entry to the CSV file.
func (s *CSVSink) AddAccess(entry AccessEntry) {
	err := s.csvWriter.Write([]string{
		strconv.Itoa(entry.Position),
		entry.Kind,
		entry.AddressSpace,
		entry.Block,
		entry.Instruction,
		entry.Metric,
		strconv.FormatInt(entry.Value, 10),
	})
	if err != nil {
		log.Panicf("cannot write access entry: %v", err)
	}
}

// Flush flushes the CSV writer.
func (s *CSVSink) Flush() {
	s.csvWriter.Flush()

	if err := s.csvWriter.Error(); err != nil {
		log.Panicf("cannot flush access entries: %v", err)
	}
}

// Close flushes the entries and closes the file.
func (s *CSVSink) Close() error {
	s.Flush()
	return s.file.Close()
}
