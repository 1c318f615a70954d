package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"

	"github.com/nickcecere/lfind/internal/embeddings"
	"github.com/nickcecere/lfind/internal/indexer"
	"github.com/nickcecere/lfind/internal/llm"
	"github.com/nickcecere/lfind/internal/search"
	"github.com/nickcecere/lfind/internal/store"
	"github.com/nickcecere/lfind/internal/vision"
)

// services holds the store and the optional model backends for one command.
type services struct {
	store    *store.SQLiteStore
	embedder embeddings.Service
	analyzer vision.Analyzer
	reranker *llm.Reranker
}

type serviceOptions struct {
	vision bool
	rerank bool
}

// openServices opens the index and builds the providers a command needs.
// Missing providers degrade to keyword search or no image analysis.
func openServices(opts serviceOptions) (*services, error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	svc := &services{store: st}

	emb, err := embeddings.NewService(cfg)
	switch {
	case errors.Is(err, embeddings.ErrDisabled):
		log.Debug("Embeddings disabled, using keyword search only")
	case err != nil:
		log.Warn("Embeddings unavailable, using keyword search only", "error", err)
	default:
		svc.embedder = emb
	}

	if opts.vision && cfg.Vision.Enabled {
		analyzer, err := vision.NewAnalyzer(cfg)
		if err != nil {
			log.Warn("Image analysis unavailable", "error", err)
		} else {
			svc.analyzer = analyzer
		}
	}

	if opts.rerank && cfg.Search.Rerank {
		completer, err := llm.NewService(cfg)
		if err != nil {
			log.Warn("Re-ranking unavailable", "error", err)
		} else {
			svc.reranker = llm.NewReranker(completer)
		}
	}

	return svc, nil
}

func (s *services) Close() {
	if err := s.store.Close(); err != nil {
		log.Warn("Failed to close store", "error", err)
	}
}

func (s *services) newIndexer(opts indexer.Options) *indexer.Indexer {
	if opts.Entitlement == nil {
		opts.Entitlement = vision.NewQuota(cfg.Vision.Limit)
	}
	return indexer.New(s.store, s.embedder, s.analyzer, cfg, opts)
}

func (s *services) newSearcher() *search.Service {
	return search.New(s.store, s.embedder, s.reranker, cfg)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// resolveIDs maps file paths, or numeric ids, to record ids. Arguments that
// match nothing are returned separately.
func resolveIDs(st store.Store, args []string) (ids []int64, unknown []string) {
	for _, arg := range args {
		if abs, err := filepath.Abs(arg); err == nil {
			if rec, err := st.GetByPath(abs); err == nil {
				ids = append(ids, rec.ID)
				continue
			}
		}
		if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
			if _, err := st.GetByID(id); err == nil {
				ids = append(ids, id)
				continue
			}
		}
		unknown = append(unknown, arg)
	}
	return ids, unknown
}
