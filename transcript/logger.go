// Package transcript records the turns of a call and persists them as a
// JSON transcript for later bug analysis.
package transcript

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Speakers on a call. The patient is the simulated side; the agent is the
// AI receptionist under test.
const (
	SpeakerPatient = "patient"
	SpeakerAgent   = "agent"
)

type Turn struct {
	Timestamp time.Time `json:"timestamp"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
}

// Record is the persisted form of one call.
type Record struct {
	ID           string            `json:"id"`
	ScenarioID   int               `json:"scenario_id"`
	ScenarioName string            `json:"scenario_name"`
	CallSid      string            `json:"call_sid"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at"`
	Metadata     map[string]string `json:"metadata"`
	Transcript   []Turn            `json:"transcript"`
}

// Logger accumulates turns during a call. Safe for concurrent use: the
// greeting task and the listen loop both append.
type Logger struct {
	mu        sync.Mutex
	id        string
	scenario  int
	name      string
	callSid   string
	startedAt time.Time
	turns     []Turn
	metadata  map[string]string
}

func NewLogger(scenarioID int, scenarioName string) *Logger {
	return &Logger{
		id:        uuid.NewString(),
		scenario:  scenarioID,
		name:      scenarioName,
		callSid:   "unknown",
		startedAt: time.Now(),
		metadata:  map[string]string{},
	}
}

// LogTurn appends one turn and echoes it to the console in real time.
func (l *Logger) LogTurn(speaker, text string) {
	text = strings.TrimSpace(text)
	l.mu.Lock()
	l.turns = append(l.turns, Turn{Timestamp: time.Now(), Speaker: speaker, Text: text})
	l.mu.Unlock()
	log.Printf("  %s: %s", strings.ToUpper(speaker), text)
}

func (l *Logger) SetCallSid(sid string) {
	if sid == "" {
		return
	}
	l.mu.Lock()
	l.callSid = sid
	l.mu.Unlock()
}

func (l *Logger) SetMetadata(key, value string) {
	l.mu.Lock()
	l.metadata[key] = value
	l.mu.Unlock()
}

// Turns returns a copy of the turns logged so far.
func (l *Logger) Turns() []Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Turn(nil), l.turns...)
}

// Record snapshots the logger into its persisted form.
func (l *Logger) Record() *Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	meta := make(map[string]string, len(l.metadata))
	for k, v := range l.metadata {
		meta[k] = v
	}
	return &Record{
		ID:           l.id,
		ScenarioID:   l.scenario,
		ScenarioName: l.name,
		CallSid:      l.callSid,
		StartedAt:    l.startedAt,
		EndedAt:      time.Now(),
		Metadata:     meta,
		Transcript:   append([]Turn(nil), l.turns...),
	}
}

// Sink persists a finished call record.
type Sink interface {
	Save(rec *Record) (string, error)
}

// FileSink writes call records as JSON files under Dir.
type FileSink struct {
	Dir string
}

func (s FileSink) Save(rec *Record) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create transcripts dir: %w", err)
	}
	name := fmt.Sprintf("call_%02d_%s_%s.json",
		rec.ScenarioID, rec.ScenarioName, rec.StartedAt.Format("20060102_150405"))
	path := filepath.Join(s.Dir, name)

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// Load reads a saved call record back from disk.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	return &rec, nil
}
