package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/jointctl/internal/dynamo"
	"github.com/san-kum/jointctl/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Joint     string             `json:"joint"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Dt        float64            `json:"dt"`
	Duration  float64            `json:"duration"`
	Goal      float64            `json:"goal"`
	Ticks     int                `json:"ticks"`
	Faults    int                `json:"faults"`
	Metrics   map[string]float64 `json:"metrics"`
}

var header = []string{
	"time", "position", "velocity",
	"reference_position", "reference_velocity",
	"estimate_position", "estimate_velocity",
	"voltage", "goal",
}

// Series is a run read back from states.csv.
type Series struct {
	Times      []float64
	States     []dynamo.JointState
	References []dynamo.JointState
	Estimates  []dynamo.JointState
	Voltages   []float64
	Goals      []float64
}

func (s *Store) Save(seed int64, goal float64, result *sim.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", result.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Joint:     result.Name,
		Timestamp: now,
		Seed:      seed,
		Dt:        result.Dt,
		Duration:  float64(result.Len()) * result.Dt,
		Goal:      goal,
		Ticks:     result.Len(),
		Faults:    result.Faults,
		Metrics:   finite(result.Metrics),
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	err = writeAll(metaFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "states.csv"))
	if err != nil {
		return "", err
	}
	if err := writeAll(csvFile, func(w io.Writer) error { return writeSeries(w, result) }); err != nil {
		return "", err
	}
	return runID, nil
}

// writeAll runs write against wc and closes it, returning the first error.
func writeAll(wc io.WriteCloser, write func(io.Writer) error) (err error) {
	defer func() {
		if cerr := wc.Close(); err == nil {
			err = cerr
		}
	}()
	return write(wc)
}

func writeSeries(out io.Writer, result *sim.Result) error {
	w := csv.NewWriter(out)
	if err := w.Write(header); err != nil {
		return err
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 10, 64) }
	for i := range result.Times {
		row := []string{
			f(result.Times[i]),
			f(result.States[i].Position), f(result.States[i].Velocity),
			f(result.References[i].Position), f(result.References[i].Velocity),
			f(result.Estimates[i].Position), f(result.Estimates[i].Velocity),
			f(result.Voltages[i]),
			f(result.Goals[i]),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// finite drops values JSON cannot carry, such as an unsettled +Inf.
func finite(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		if !dynamo.State([]float64{v}).IsValid() {
			continue
		}
		out[k] = v
	}
	return out
}

// List returns every readable run, newest first.
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

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
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

func (s *Store) LoadSeries(runID string) (*Series, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "states.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = len(header)

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	series := &Series{}
	if len(records) < 2 {
		return series, nil
	}

	for line, record := range records[1:] {
		vals := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("states.csv line %d column %s: %w", line+2, header[j], err)
			}
			vals[j] = v
		}
		series.Times = append(series.Times, vals[0])
		series.States = append(series.States, dynamo.JointState{Position: vals[1], Velocity: vals[2]})
		series.References = append(series.References, dynamo.JointState{Position: vals[3], Velocity: vals[4]})
		series.Estimates = append(series.Estimates, dynamo.JointState{Position: vals[5], Velocity: vals[6]})
		series.Voltages = append(series.Voltages, vals[7])
		series.Goals = append(series.Goals, vals[8])
	}
	return series, nil
}
