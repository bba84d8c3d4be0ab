package search

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/tchow-twistedxcom/tgarchive/internal/archive"
)

// FormatVersion is the serialized index version written by Serialize.
const FormatVersion = 1

// IndexError reports a serialized index that cannot be used. Callers fall
// back to Build.
type IndexError struct {
	Reason string
	Err    error

	// Foreign is set for an index written by another tool (no version
	// field). Callers treat it as absent rather than broken.
	Foreign bool
}

func (e *IndexError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("search: unusable index: %s: %v", e.Reason, e.Err)
	}
	return "search: unusable index: " + e.Reason
}

func (e *IndexError) Unwrap() error { return e.Err }

type serializedField struct {
	V string  `json:"v"`
	N float64 `json:"n"`
}

type serializedRecord struct {
	I      int                        `json:"i"`
	ID     int64                      `json:"id"`
	Fields map[string]serializedField `json:"$"`
}

type serializedIndex struct {
	Version int                `json:"version"`
	Keys    []string           `json:"keys"`
	Records []serializedRecord `json:"records"`
}

// Serialize renders the index in its file form.
func (idx *Index) Serialize() ([]byte, error) {
	out := serializedIndex{Version: FormatVersion, Keys: Keys, Records: make([]serializedRecord, 0, len(idx.records))}
	for i, rec := range idx.records {
		sr := serializedRecord{I: i, ID: idx.messages[i].ID, Fields: map[string]serializedField{}}
		for k, f := range rec.fields {
			if f != nil {
				sr.Fields[strconv.Itoa(k)] = serializedField{V: f.value, N: f.norm}
			}
		}
		out.Records = append(out.Records, sr)
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("serialize index: %w", err)
	}
	return data, nil
}

// Load pairs a serialized index with the working set. Records are matched to
// messages by id; a stored field is reused only while its value still equals
// the message field, so a stale or partial index yields the same results as
// Build. Records for unknown ids are dropped.
func Load(messages []archive.Message, data []byte, opts Options) (*Index, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &IndexError{Reason: "malformed json", Err: err}
	}
	if _, ok := top["version"]; !ok {
		return nil, &IndexError{Reason: "unversioned index from another tool", Foreign: true}
	}
	var si serializedIndex
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, &IndexError{Reason: "malformed json", Err: err}
	}
	if si.Version != FormatVersion {
		return nil, &IndexError{Reason: fmt.Sprintf("unsupported version %d", si.Version)}
	}
	if !slices.Equal(si.Keys, Keys) {
		return nil, &IndexError{Reason: fmt.Sprintf("key set %v does not match %v", si.Keys, Keys)}
	}

	byID := make(map[int64][]serializedRecord, len(si.Records))
	for _, r := range si.Records {
		byID[r.ID] = append(byID[r.ID], r)
	}

	idx := &Index{messages: messages, records: make([]record, len(messages)), opts: opts}
	reused, rebuilt := 0, 0
	for i := range messages {
		m := &messages[i]
		queue := byID[m.ID]
		if len(queue) == 0 {
			idx.records[i] = buildRecord(m)
			rebuilt++
			continue
		}
		sr := queue[0]
		byID[m.ID] = queue[1:]

		var rec record
		for k := range Keys {
			v := fieldValue(m, k)
			if v == "" {
				continue
			}
			if sf, ok := sr.Fields[strconv.Itoa(k)]; ok && sf.V == v && sf.N > 0 {
				rec.fields[k] = newField(v, sf.N)
			} else {
				rec.fields[k] = newField(v, fieldNorm(v))
			}
		}
		idx.records[i] = rec
		reused++
	}

	dropped := 0
	for _, rest := range byID {
		dropped += len(rest)
	}
	searchLog.Info("index_loaded", "reused", reused, "rebuilt", rebuilt, "dropped", dropped)
	return idx, nil
}
