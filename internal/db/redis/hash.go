package redis

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/redis/rueidis"
	"github.com/spf13/cast"

	"github.com/kailas-cloud/searchdex/internal/db"
)

var errMissingID = errors.New("document id is required")

// Write stores doc as a hash, replacing the fields it sets.
func (s *Store) Write(ctx context.Context, doc db.Document) error {
	if doc.ID == "" {
		return &db.Error{Op: db.OpWrite, Err: errMissingID}
	}
	if err := s.do(ctx, s.hsetCmd(doc)).Error(); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	return nil
}

// WriteMany stores docs in a single DoMulti round-trip.
func (s *Store) WriteMany(ctx context.Context, docs []db.Document) error {
	if len(docs) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return &db.Error{Op: db.OpWriteMany, Err: fmt.Errorf("document %d: %w", i, errMissingID)}
		}
		cmds[i] = s.hsetCmd(doc)
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpWriteMany, Err: fmt.Errorf("key %s: %w", s.key(docs[i].ID), err)}
		}
	}
	return nil
}

func (s *Store) hsetCmd(doc db.Document) rueidis.Completed {
	fields := s.hashFields(doc)
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)

	cmd := s.b().Hset().Key(s.key(doc.ID)).FieldValue()
	for _, k := range names {
		cmd = cmd.FieldValue(k, fields[k])
	}
	return cmd.Build()
}

func (s *Store) hashFields(doc db.Document) map[string]string {
	out := make(map[string]string, len(doc.Fields)+1)
	for k, v := range doc.Fields {
		if v == nil {
			continue
		}
		out[k] = stringify(v)
	}
	out[s.cfg.IDField] = doc.ID
	return out
}

// stringify renders a field value for a hash; slices become comma-separated TAG lists.
func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []string:
		return strings.Join(x, ",")
	case fmt.Stringer:
		return x.String()
	}

	if str, err := cast.ToStringE(v); err == nil {
		return str
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, rv.Len())
		for i := range rv.Len() {
			parts[i] = stringify(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}
