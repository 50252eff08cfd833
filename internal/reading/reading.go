package reading

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is one captured sample. The value keeps the two-decimal string form
// it was captured with so the persisted and synced log never re-rounds it.
type Reading struct {
	Value     string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// New formats v with two fractional digits and stamps it with ts.
func New(v float64, ts time.Time) Reading {
	return Reading{
		Value:     fmt.Sprintf("%.2f", v),
		Timestamp: ts,
	}
}

// Log is the ordered history of readings, oldest first.
type Log []Reading

// Append returns a new log with r added at the end. The receiver is not
// modified, so a log handed out earlier stays valid.
func (l Log) Append(r Reading) Log {
	out := make(Log, len(l), len(l)+1)
	copy(out, l)
	return append(out, r)
}

// Clone returns a copy of the log.
func (l Log) Clone() Log {
	if l == nil {
		return Log{}
	}
	out := make(Log, len(l))
	copy(out, l)
	return out
}

// Last returns the newest reading and whether the log is non-empty.
func (l Log) Last() (Reading, bool) {
	if len(l) == 0 {
		return Reading{}, false
	}
	return l[len(l)-1], true
}

// Encode serializes the log as a JSON array.
func (l Log) Encode() (string, error) {
	if l == nil {
		l = Log{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a JSON array produced by Encode.
func Decode(s string) (Log, error) {
	var l Log
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		return nil, fmt.Errorf("decode reading log: %w", err)
	}
	if l == nil {
		l = Log{}
	}
	return l, nil
}
