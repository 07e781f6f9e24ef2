package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID              string             `json:"id"`
	System          string             `json:"system"`
	Timestamp       time.Time          `json:"timestamp"`
	RateHz          float64            `json:"rate_hz"`
	Drift           string             `json:"drift"`
	Strategy        string             `json:"strategy"`
	StorageUsed     int                `json:"storage_used"`
	StorageCapacity int                `json:"storage_capacity"`
	Steps           uint64             `json:"steps"`
	Overruns        uint64             `json:"overruns"`
	Skipped         uint64             `json:"skipped"`
	Error           string             `json:"error,omitempty"`
	Metrics         map[string]float64 `json:"metrics"`
}

// Save writes a run and returns its ID. meta.ID and meta.Timestamp are
// filled in when empty.
func (s *Store) Save(meta RunMetadata, tr *Trace) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		meta.ID = fmt.Sprintf("%s_%d", meta.System, meta.Timestamp.UnixMilli())
	}
	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if tr == nil {
		return meta.ID, nil
	}
	if err := writeSamples(filepath.Join(runDir, "samples.csv"), tr); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeSamples(path string, tr *Trace) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"time", "tick"}, tr.Columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := range tr.Times {
		row := []string{
			strconv.FormatFloat(tr.Times[i], 'f', 6, 64),
			strconv.FormatUint(tr.Ticks[i], 10),
		}
		for _, v := range tr.Rows[i] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every stored run, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadTrace reads the samples of a run.
func (s *Store) LoadTrace(runID string) (*Trace, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "samples.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || len(records[0]) < 2 {
		return nil, fmt.Errorf("trace %s: missing header", runID)
	}

	tr := &Trace{Columns: append([]string(nil), records[0][2:]...)}
	for line, rec := range records[1:] {
		if len(rec) != len(records[0]) {
			return nil, fmt.Errorf("trace %s: line %d has %d fields, want %d", runID, line+2, len(rec), len(records[0]))
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("trace %s: line %d: %w", runID, line+2, err)
		}
		tick, err := strconv.ParseUint(rec[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("trace %s: line %d: %w", runID, line+2, err)
		}
		row := make([]float64, 0, len(rec)-2)
		for _, field := range rec[2:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("trace %s: line %d: %w", runID, line+2, err)
			}
			row = append(row, v)
		}
		tr.Times = append(tr.Times, t)
		tr.Ticks = append(tr.Ticks, tick)
		tr.Rows = append(tr.Rows, row)
	}
	return tr, nil
}
