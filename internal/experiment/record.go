// Package experiment collects per-frame tracking statistics for an AR session
// and stores them for later analysis.
package experiment

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is one sample of tracking quality.
type Record struct {
	Time          time.Duration // since the session started
	NumFeatures   int
	AvgConfidence float32
	PlaneArea     float64 // m²
}

// String formats the record as "seconds | features confidence area".
func (r Record) String() string {
	return fmt.Sprintf("%.2f | %03d %.2f %.2f",
		r.Time.Seconds(), r.NumFeatures, r.AvgConfidence, r.PlaneArea)
}

// ParseRecord parses a line written by Record.String.
// Values are read back at the two-decimal precision they were written with.
func ParseRecord(line string) (Record, error) {
	var (
		secs, conf, area float64
		n                int
	)
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "%f | %d %f %f", &secs, &n, &conf, &area); err != nil {
		return Record{}, fmt.Errorf("parse record %q: %w", line, err)
	}
	return Record{
		Time:          time.Duration(math.Round(secs*1000)) * time.Millisecond,
		NumFeatures:   n,
		AvgConfidence: float32(conf),
		PlaneArea:     area,
	}, nil
}

// ReadRecords reads one record per line, skipping blank lines.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := ParseRecord(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Experiment is the set of records collected during one session.
type Experiment struct {
	ID        string
	StartedAt time.Time
	Records   []Record
}

// New creates an empty experiment with a fresh ID.
func New(startedAt time.Time) *Experiment {
	return &Experiment{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}
}

// Add appends a record.
func (e *Experiment) Add(r Record) {
	e.Records = append(e.Records, r)
}

// Duration returns the time of the last record.
func (e *Experiment) Duration() time.Duration {
	if len(e.Records) == 0 {
		return 0
	}
	return e.Records[len(e.Records)-1].Time
}

// WriteTo writes one record per line.
func (e *Experiment) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	sb.Grow(len(e.Records) * 24)
	for _, r := range e.Records {
		sb.WriteString(r.String())
		sb.WriteByte('\n')
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}
