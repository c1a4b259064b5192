// Package realtime turns Postgres change notifications into typed changes,
// fans them out to filtered subscriptions and exchanges access tokens for
// short-lived realtime tokens.
package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"doulitsa/internal/models"
)

const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
	EventAll    = "*"
)

// Change is one row change as published by the notify trigger.
type Change struct {
	Schema          string         `json:"schema"`
	Table           string         `json:"table"`
	Type            string         `json:"type"`
	Record          map[string]any `json:"record"`
	OldRecord       map[string]any `json:"old_record"`
	CommitTimestamp time.Time      `json:"commit_timestamp"`
}

// Row returns the record filters apply to: the old row for deletes, the new
// row otherwise.
func (c Change) Row() map[string]any {
	if c.Type == EventDelete {
		return c.OldRecord
	}
	return c.Record
}

// Int64 reads an integer column of Row.
func (c Change) Int64(column string) (int64, bool) {
	v, ok := c.Row()[column]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(formatScalar(v), 10, 64)
	return n, err == nil
}

func ParseChange(payload []byte) (Change, error) {
	var c Change
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	switch c.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", c.Type)
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("change without table")
	}
	return c, nil
}

func formatScalar(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// MessageContent fills record.content of message inserts and updates from
// load. Deletes carry no content.
func MessageContent(load func(ctx context.Context, id int64) (models.Message, error)) Hydrator {
	return func(ctx context.Context, c Change) (Change, error) {
		if c.Table != "messages" || c.Type == EventDelete || c.Record == nil {
			return c, nil
		}
		if _, ok := c.Record["content"]; ok {
			return c, nil
		}
		id, ok := c.Int64("id")
		if !ok {
			return c, fmt.Errorf("message change without id")
		}
		m, err := load(ctx, id)
		if err != nil {
			return c, fmt.Errorf("load message %d: %w", id, err)
		}
		record := make(map[string]any, len(c.Record)+1)
		for k, v := range c.Record {
			record[k] = v
		}
		record["content"] = m.Content
		c.Record = record
		return c, nil
	}
}
