package analysis

import (
	"io"

	"gopkg.in/yaml.v3"
)

// Report lists the counts of every analyzed access, in program order.
type Report struct {
	LoadTransactions   []int64 `yaml:"load_transactions,flow"`
	StoreTransactions  []int64 `yaml:"store_transactions,flow"`
	LoadBankConflicts  []int64 `yaml:"load_bank_conflicts,flow"`
	StoreBankConflicts []int64 `yaml:"store_bank_conflicts,flow"`
}

func newReport() *Report {
	return &Report{
		LoadTransactions:   []int64{},
		StoreTransactions:  []int64{},
		LoadBankConflicts:  []int64{},
		StoreBankConflicts: []int64{},
	}
}

func (r *Report) add(entry AccessEntry) {
	switch {
	case entry.Kind == KindLoad && entry.Metric == MetricTransactions:
		r.LoadTransactions = append(r.LoadTransactions, entry.Value)
	case entry.Kind == KindStore && entry.Metric == MetricTransactions:
		r.StoreTransactions = append(r.StoreTransactions, entry.Value)
	case entry.Kind == KindLoad:
		r.LoadBankConflicts = append(r.LoadBankConflicts, entry.Value)
	default:
		r.StoreBankConflicts = append(r.StoreBankConflicts, entry.Value)
	}
}

// WriteYAML writes the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return err
	}

	return enc.Close()
}
