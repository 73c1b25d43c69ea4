package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/db"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
	"github.com/kailas-cloud/searchdex/internal/domain/search/template"
	"github.com/kailas-cloud/searchdex/internal/metrics"
)

// Operation names used in logs and metrics.
const (
	opAdd           = "add"
	opAddAll        = "add_all"
	opQuery         = "query"
	opDelete        = "delete"
	opDeleteAll     = "delete_all"
	opDeleteByQuery = "delete_by_query"
	opCommit        = "commit"
	opRefresh       = "refresh"
)

// Config controls id handling and write visibility.
type Config struct {
	// IDField is the entry field holding the document id.
	IDField string
	// AutoGenerateID assigns a UUID to entries with a blank id.
	AutoGenerateID bool
	// AutoCommit commits after every write and delete.
	AutoCommit bool
	// Streaming sends AddAll batches in a single round trip.
	Streaming bool
}

// Service is the search facade: it maps, writes, queries and deletes entries
// against one backend and reclassifies backend failures.
type Service struct {
	backend    Backend
	mapper     EntryMapper
	translator Translator
	cfg        Config
	logger     *zap.Logger
}

// New creates a search facade. translator is required.
func New(backend Backend, mapper EntryMapper, translator Translator, cfg Config, logger *zap.Logger) (*Service, error) {
	if backend == nil {
		return nil, errors.New("search: backend is required")
	}
	if mapper == nil {
		return nil, errors.New("search: mapper is required")
	}
	if translator == nil {
		return nil, errors.New("search: translator is required")
	}
	if strings.TrimSpace(cfg.IDField) == "" {
		return nil, errors.New("search: id field is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{backend: backend, mapper: mapper, translator: translator, cfg: cfg, logger: logger}, nil
}

// IDField returns the configured id field.
func (s *Service) IDField() string { return s.cfg.IDField }

// Dialect returns the backend query shapes.
func (s *Service) Dialect() db.Dialect { return s.backend.Dialect() }

// Add writes one entry and returns its id.
func (s *Service) Add(ctx context.Context, e entry.Entry) (id string, err error) {
	defer s.observe(opAdd, time.Now(), &err)

	doc, err := s.prepare(e)
	if err != nil {
		return "", err
	}
	if err = s.backend.Write(ctx, doc); err != nil {
		return "", s.translate(err, "")
	}
	if err = s.autoCommit(ctx); err != nil {
		return "", err
	}
	metrics.SearchEntriesTotal.WithLabelValues("written").Inc()
	return doc.ID, nil
}

// AddAll writes entries in order and returns their ids. Every entry is
// validated before the first write; the first backend failure aborts the batch.
func (s *Service) AddAll(ctx context.Context, entries ...entry.Entry) (ids []string, err error) {
	defer s.observe(opAddAll, time.Now(), &err)

	docs := make([]db.Document, 0, len(entries))
	for i, e := range entries {
		doc, perr := s.prepare(e)
		if perr != nil {
			return nil, fmt.Errorf("entry %d: %w", i, perr)
		}
		docs = append(docs, doc)
	}
	ids = make([]string, 0, len(docs))
	if len(docs) == 0 {
		return ids, nil
	}

	if s.cfg.Streaming {
		if err = s.backend.WriteMany(ctx, docs); err != nil {
			return nil, s.translate(err, "")
		}
	} else {
		for _, doc := range docs {
			if err = s.backend.Write(ctx, doc); err != nil {
				return nil, s.translate(err, "")
			}
		}
	}
	if err = s.autoCommit(ctx); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	metrics.SearchEntriesTotal.WithLabelValues("written").Add(float64(len(docs)))
	return ids, nil
}

// Index encodes obj and writes it.
func (s *Service) Index(ctx context.Context, obj any) (string, error) {
	e, err := s.mapper.Encode(obj)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return s.Add(ctx, e)
}

// IndexAll encodes every object, then writes them as one batch.
func (s *Service) IndexAll(ctx context.Context, objs ...any) ([]string, error) {
	entries := make([]entry.Entry, 0, len(objs))
	for i, obj := range objs {
		e, err := s.mapper.Encode(obj)
		if err != nil {
			return nil, fmt.Errorf("encode object %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	return s.AddAll(ctx, entries...)
}

// Query resolves the template against params and runs it.
func (s *Service) Query(ctx context.Context, q string, params ...any) (resp *response.Response, err error) {
	defer s.observe(opQuery, time.Now(), &err)

	resolved, err := template.Resolve(q, params...)
	if err != nil {
		return nil, fmt.Errorf("resolve query: %w", err)
	}
	s.logger.Debug("search query", zap.String("query", resolved))

	res, err := s.backend.Query(ctx, resolved)
	if err != nil {
		return nil, s.translate(err, resolved)
	}

	resp = response.New(res.Took, res.Total)
	resp.Native = res
	for _, h := range res.Hits {
		e := entry.Entry(h.Fields).Clone()
		if e == nil {
			e = entry.Entry{}
		}
		if _, ok := e[s.cfg.IDField]; !ok && h.ID != "" {
			e[s.cfg.IDField] = h.ID
		}
		resp.Append(e, h.Score)
	}
	metrics.SearchEntriesTotal.WithLabelValues("returned").Add(float64(resp.Len()))
	return resp, nil
}

// Delete removes entries by id.
func (s *Service) Delete(ctx context.Context, ids ...string) (err error) {
	defer s.observe(opDelete, time.Now(), &err)

	if len(ids) == 0 {
		return nil
	}
	if err = s.backend.DeleteByID(ctx, ids...); err != nil {
		return s.translate(err, "")
	}
	return s.autoCommit(ctx)
}

// DeleteAll removes every entry.
func (s *Service) DeleteAll(ctx context.Context) (err error) {
	defer s.observe(opDeleteAll, time.Now(), &err)

	if err = s.backend.DeleteAll(ctx); err != nil {
		return s.translate(err, "")
	}
	return s.autoCommit(ctx)
}

// DeleteByQuery removes every entry matching the resolved query.
func (s *Service) DeleteByQuery(ctx context.Context, q string, params ...any) (err error) {
	defer s.observe(opDeleteByQuery, time.Now(), &err)

	resolved, err := template.Resolve(q, params...)
	if err != nil {
		return fmt.Errorf("resolve query: %w", err)
	}
	if err = s.backend.DeleteByQuery(ctx, resolved); err != nil {
		return s.translate(err, resolved)
	}
	return s.autoCommit(ctx)
}

// Commit makes pending writes visible.
func (s *Service) Commit(ctx context.Context) (err error) {
	defer s.observe(opCommit, time.Now(), &err)

	if err = s.backend.Commit(ctx); err != nil {
		return s.translate(err, "")
	}
	return nil
}

// Refresh asks the backend to optimize its index.
func (s *Service) Refresh(ctx context.Context) (err error) {
	defer s.observe(opRefresh, time.Now(), &err)

	if err = s.backend.Optimize(ctx); err != nil {
		return s.translate(err, "")
	}
	return nil
}

// IsAlive reports whether the backend answers a ping.
func (s *Service) IsAlive(ctx context.Context) bool {
	if err := s.backend.Ping(ctx); err != nil {
		s.logger.Debug("backend ping failed", zap.Error(err))
		return false
	}
	return true
}

func (s *Service) prepare(e entry.Entry) (db.Document, error) {
	if len(e) == 0 {
		return db.Document{}, fmt.Errorf("%w: entry has no field", domain.ErrInvalidIndexEntry)
	}
	fields := e.Clone()

	id := strings.TrimSpace(fields.String(s.cfg.IDField))
	if id == "" {
		if !s.cfg.AutoGenerateID {
			return db.Document{}, fmt.Errorf("%w: missing id field %q", domain.ErrInvalidIndexEntry, s.cfg.IDField)
		}
		id = uuid.NewString()
		fields[s.cfg.IDField] = id
	}
	return db.Document{ID: id, Fields: fields}, nil
}

func (s *Service) autoCommit(ctx context.Context) error {
	if !s.cfg.AutoCommit {
		return nil
	}
	if err := s.backend.Commit(ctx); err != nil {
		return s.translate(err, "")
	}
	return nil
}

// translate reclassifies err; unrecognized errors are returned unchanged.
func (s *Service) translate(err error, query string) error {
	out := s.translator.Translate(err)
	if out == nil {
		s.logger.Warn("unclassified backend error", zap.Error(err))
		return err
	}
	s.logger.Warn("backend error", zap.Error(out), zap.NamedError("cause", err))

	se, ok := out.(*domain.SearchError)
	if !ok || query == "" || se.Query != "" || !errors.Is(se.Kind, domain.ErrInvalidQuery) {
		return out
	}
	withQuery := *se
	withQuery.Query = query
	return &withQuery
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	metrics.ObserveOperation(op, outcome(*errp), time.Since(start))
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch domain.KindOf(err) {
	case domain.ErrNotFound:
		return "not_found"
	case domain.ErrInvalidIndexEntry:
		return "invalid_entry"
	case domain.ErrIndexEntryMapping:
		return "mapping"
	case domain.ErrInvalidParams:
		return "invalid_params"
	case domain.ErrInvalidQuery:
		return "invalid_query"
	case domain.ErrServerUnavailable:
		return "server_unavailable"
	case domain.ErrUncategorized:
		return "uncategorized"
	default:
		return "error"
	}
}
