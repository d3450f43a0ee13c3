package retrieval

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/KaramelBytes/listingloom/internal/model"
	"github.com/KaramelBytes/listingloom/internal/parser"
	"github.com/KaramelBytes/listingloom/internal/store"
)

// RecordSearcher is the part of the record store used for retrieval.
type RecordSearcher interface {
	Search(ctx context.Context, keywords []string, fn func(model.Record) error) error
}

// StoreSource yields active records whose payload contains any token, in id order.
type StoreSource struct {
	name  string
	store RecordSearcher
}

// NewStoreSource wraps a record store. The name labels its block.
func NewStoreSource(name string, s RecordSearcher) *StoreSource {
	if name == "" {
		name = "listings"
	}
	return &StoreSource{name: name, store: s}
}

func (s *StoreSource) Name() string { return s.name }

func (s *StoreSource) Scan(ctx context.Context, tokens []string, fn func(Row) error) error {
	err := s.store.Search(ctx, tokens, func(rec model.Record) error {
		if err := fn(Row{ExternalID: rec.ExternalID, Fields: rec.Payload}); err != nil {
			if errors.Is(err, ErrStopScan) {
				return store.ErrStop
			}
			return err
		}
		return nil
	})
	return eris.Wrapf(err, "retrieval: scan %s", s.name)
}

// FileSource streams rows of one CSV or TSV file.
type FileSource struct {
	Path string
}

// Name is the file's base name.
func (f FileSource) Name() string { return filepath.Base(f.Path) }

func (f FileSource) Scan(_ context.Context, _ []string, fn func(Row) error) error {
	_, _, err := parser.StreamFile(f.Path, func(p model.Payload) error {
		id, _ := parser.IdentifierOf(p)
		return fn(Row{ExternalID: id, Fields: p})
	})
	if err != nil && !errors.Is(err, ErrStopScan) {
		return eris.Wrapf(err, "retrieval: scan %s", f.Name())
	}
	return nil
}

// DirSources returns a FileSource per supported file in dir, sorted by name.
// A missing directory yields no sources.
func DirSources(dir string) ([]Source, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "retrieval: list data dir")
	}
	var out []Source
	for _, e := range entries {
		if e.IsDir() || !parser.Supported(e.Name()) {
			continue
		}
		out = append(out, FileSource{Path: filepath.Join(dir, e.Name())})
	}
	return out, nil
}

// Ordered arranges the store source and file sources by policy: "files_first"
// puts files ahead of the store, anything else puts the store first.
func Ordered(order string, storeSrc Source, files []Source) []Source {
	out := make([]Source, 0, len(files)+1)
	if order == "files_first" {
		out = append(out, files...)
		if storeSrc != nil {
			out = append(out, storeSrc)
		}
		return out
	}
	if storeSrc != nil {
		out = append(out, storeSrc)
	}
	return append(out, files...)
}
