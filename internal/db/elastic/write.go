package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/searchdex/internal/db"
)

var errMissingID = errors.New("document id is required")

type bulkResponse struct {
	Errors bool                  `json:"errors"`
	Items  []map[string]bulkItem `json:"items"`
}

type bulkItem struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *Cause `json:"error,omitempty"`
}

// Write indexes doc under its id, replacing any previous version.
func (s *Store) Write(ctx context.Context, doc db.Document) error {
	if doc.ID == "" {
		return &db.Error{Op: db.OpWrite, Err: errMissingID}
	}
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return &db.Error{Op: db.OpWrite, Err: fmt.Errorf("marshal document %s: %w", doc.ID, err)}
	}

	res, err := s.client.Index(
		s.cfg.Index,
		bytes.NewReader(data),
		s.client.Index.WithDocumentID(doc.ID),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: db.OpWrite, Err: decodeError(res)}
	}
	return nil
}

// WriteMany indexes docs through one _bulk request.
func (s *Store) WriteMany(ctx context.Context, docs []db.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, doc := range docs {
		if doc.ID == "" {
			return &db.Error{Op: db.OpWriteMany, Err: fmt.Errorf("document %d: %w", i, errMissingID)}
		}
		action := map[string]any{"index": map[string]any{"_index": s.cfg.Index, "_id": doc.ID}}
		if err := enc.Encode(action); err != nil {
			return &db.Error{Op: db.OpWriteMany, Err: fmt.Errorf("encode action: %w", err)}
		}
		if err := enc.Encode(doc.Fields); err != nil {
			return &db.Error{Op: db.OpWriteMany, Err: fmt.Errorf("encode document %s: %w", doc.ID, err)}
		}
	}

	return s.bulk(ctx, db.OpWriteMany, &buf)
}

func (s *Store) bulk(ctx context.Context, op string, body *bytes.Buffer) error {
	res, err := s.client.Bulk(
		bytes.NewReader(body.Bytes()),
		s.client.Bulk.WithIndex(s.cfg.Index),
		s.client.Bulk.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: op, Err: decodeError(res)}
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return &db.Error{Op: op, Err: fmt.Errorf("decode bulk response: %w", err)}
	}
	if !br.Errors {
		return nil
	}

	var msgs []string
	var first *ResponseError
	for _, item := range br.Items {
		for _, it := range item {
			if it.Error == nil {
				continue
			}
			msgs = append(msgs, fmt.Sprintf("id=%s: %s: %s", it.ID, it.Error.Type, it.Error.Reason))
			if first == nil {
				first = &ResponseError{Status: it.Status, Cause: *it.Error}
			}
		}
	}
	if first == nil {
		return nil
	}
	return &db.Error{Op: op, Err: fmt.Errorf("partial bulk failure (%s): %w", strings.Join(msgs, "; "), first)}
}
