// Package usage records every external-agent call exactly once in an
// append-only JSONL ledger and makes cost observable. Totals are always
// derived by summing the records, never maintained as separate mutable
// counters, which eliminates drift between the log and the summary.
package usage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// LedgerFileName is the per-change usage ledger file.
const LedgerFileName = "usage.jsonl"

// Record is one entry per external-agent call. Immutable once appended.
type Record struct {
	// Step labels the workflow step, e.g. "proposal-gen", "challenge".
	Step string `json:"step"`

	// Model is the model identifier reported by the agent runtime.
	Model string `json:"model"`

	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`

	// Cost is derived from the pricing table at record time. Unpriced
	// models record 0.0 rather than omitting the field; omission would
	// corrupt downstream summation.
	Cost float64 `json:"cost"`

	// DurationMS is the wall-clock call duration in milliseconds.
	DurationMS float64 `json:"duration_ms"`

	// Timestamp is the UTC append time.
	Timestamp time.Time `json:"ts"`
}

// Totals is the derived summary over all records.
type Totals struct {
	Cost      float64 `json:"total_cost"`
	TokensIn  int     `json:"total_tokens_in"`
	TokensOut int     `json:"total_tokens_out"`
	Records   int     `json:"records"`
}

// Ledger appends and reads usage records for one change.
type Ledger struct {
	// Path is the ledger file location.
	Path string

	// Pricing maps model identifiers to per-Mtok prices.
	Pricing Pricing
}

// NewLedger returns a ledger stored in the given change directory.
func NewLedger(changeDir string, pricing Pricing) *Ledger {
	return &Ledger{Path: filepath.Join(changeDir, LedgerFileName), Pricing: pricing}
}

// Record appends one usage record with lock + fsync durability and returns
// it with the derived cost filled in.
func (l *Ledger) Record(step, model string, tokensIn, tokensOut int, d time.Duration) (Record, error) {
	if strings.TrimSpace(step) == "" {
		return Record{}, fmt.Errorf("step is required")
	}

	record := Record{
		Step:       step,
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		Cost:       l.Pricing.Cost(model, tokensIn, tokensOut),
		DurationMS: float64(d) / float64(time.Millisecond),
		Timestamp:  time.Now().UTC(),
	}

	line, err := json.Marshal(record)
	if err != nil {
		return Record{}, fmt.Errorf("marshal usage record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return Record{}, fmt.Errorf("create ledger dir: %w", err)
	}

	lockFile, err := os.OpenFile(l.Path+".lock", os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return Record{}, fmt.Errorf("open ledger lock: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return Record{}, fmt.Errorf("lock ledger: %w", err)
	}
	defer func() {
		_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
	}()

	file, err := os.OpenFile(l.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return Record{}, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return Record{}, fmt.Errorf("append usage record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return Record{}, fmt.Errorf("fsync ledger: %w", err)
	}

	return record, nil
}

// Records loads all usage records in append order. A missing ledger file
// is an empty ledger, not an error.
func (l *Ledger) Records() ([]Record, error) {
	file, err := os.Open(l.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer file.Close()

	return readRecords(file)
}

// Totals recomputes the running totals as the sum of all records.
func (l *Ledger) Totals() (Totals, error) {
	records, err := l.Records()
	if err != nil {
		return Totals{}, err
	}
	return Sum(records), nil
}

// Sum derives totals from a record list. Ordering does not matter.
func Sum(records []Record) Totals {
	var t Totals
	for _, r := range records {
		t.Cost += r.Cost
		t.TokensIn += r.TokensIn
		t.TokensOut += r.TokensOut
		t.Records++
	}
	return t
}

func readRecords(r io.Reader) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decode ledger line %d: %w", lineNum, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}
	return records, nil
}
