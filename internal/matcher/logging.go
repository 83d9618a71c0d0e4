package matcher

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hetulpatel/arbwatch/internal/matches"
)

type LogMode int

const (
	LogModeQuiet LogMode = iota
	LogModeSummary
	LogModeVerbose
)

func ParseLogMode(input string) LogMode {
	switch strings.ToLower(input) {
	case "summary":
		return LogModeSummary
	case "verbose":
		return LogModeVerbose
	default:
		return LogModeQuiet
	}
}

// Logger prints committed pairs and appends them to a JSON-lines file.
type Logger struct {
	mode    LogMode
	out     io.Writer
	logPath string
}

// NewLogger writes to stdout; an empty logPath disables the file.
func NewLogger(mode LogMode, logPath string) *Logger {
	return &Logger{mode: mode, out: os.Stdout, logPath: logPath}
}

// WithOutput redirects console lines.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	if l != nil && w != nil {
		l.out = w
	}
	return l
}

func (l *Logger) Enabled() bool {
	return l != nil && l.mode != LogModeQuiet
}

// LogMatches reports every pair of one matching run.
func (l *Logger) LogMatches(pairs []matches.Pair, threshold float64) {
	if !l.Enabled() {
		return
	}
	for _, p := range pairs {
		l.LogMatch(p, threshold)
	}
}

func (l *Logger) LogMatch(p matches.Pair, threshold float64) {
	if !l.Enabled() {
		return
	}
	switch l.mode {
	case LogModeSummary:
		fmt.Fprintf(l.out, "[matcher] matched kalshi %s (%s) -> polymarket %s (%s) score=%.1f threshold=%.0f\n",
			p.Kalshi.MarketID, p.Kalshi.Title, p.Polymarket.MarketID, p.Polymarket.Title, p.Score, threshold)
	case LogModeVerbose:
		pairJSON, _ := json.MarshalIndent(p, "", "  ")
		fmt.Fprintf(l.out, "[matcher] match score=%.1f threshold=%.0f\n%s\n", p.Score, threshold, string(pairJSON))
	}
	l.appendToFile(p, threshold)
}

func (l *Logger) appendToFile(p matches.Pair, threshold float64) {
	if l.logPath == "" {
		return
	}
	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"pair_id":   p.ID(),
		"score":     p.Score,
		"threshold": threshold,
		"pair":      p,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.out, "[matcher] log file marshal error: %v\n", err)
		return
	}
	f, err := os.OpenFile(l.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(l.out, "[matcher] log file open error: %v\n", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		fmt.Fprintf(l.out, "[matcher] log file write error: %v\n", err)
	}
}
