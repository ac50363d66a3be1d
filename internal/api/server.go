package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/parser"
	"github.com/estensen/streamflow-pipeline/internal/storage"
)

// ErrNotFound is returned by sources for unknown addresses.
var ErrNotFound = errors.New("not found")

const (
	defaultCacheTTL     = 5 * time.Minute
	cacheCleanupPeriod  = 10 * time.Minute
	shutdownGracePeriod = 5 * time.Second
)

// StreamSource fetches a freshly derived stream.
type StreamSource interface {
	Stream(ctx context.Context, address solana.PublicKey) (models.Stream, error)
}

// StreamLister lists streams matching a filter, derived at the ledger's time.
type StreamLister interface {
	Streams(filter parser.StreamFilter) []models.Stream
}

// Archive holds stream snapshots taken on earlier runs.
type Archive interface {
	Load(ctx context.Context, address solana.PublicKey) (models.Stream, error)
}

type ActivitySource interface {
	StreamActivity(ctx context.Context, stream solana.PublicKey) ([]models.StreamActivity, error)
	TreasuryActivity(ctx context.Context, treasury solana.PublicKey) ([]models.TreasuryActivity, error)
}

// Server serves streams and activity as JSON. Streams are fetched once per
// cache period and re-derived from the cached copy in between.
type Server struct {
	Streams  StreamSource
	Activity ActivitySource
	Lister   StreamLister
	Archive  Archive

	parser   *parser.Parser
	cache    *cache.Cache
	gatherer prometheus.Gatherer
	logger   *zap.Logger
	friendly bool
}

type Option func(*Server)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithFriendly sets the presentation used when a request does not ask.
func WithFriendly(friendly bool) Option {
	return func(s *Server) { s.friendly = friendly }
}

// WithLister serves GET /streams from l.
func WithLister(l StreamLister) Option {
	return func(s *Server) { s.Lister = l }
}

// WithArchive answers for streams the source no longer knows from their last
// archived snapshot.
func WithArchive(a Archive) Option {
	return func(s *Server) { s.Archive = a }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Server) { s.cache = cache.New(ttl, cacheCleanupPeriod) }
}

func NewServer(streams StreamSource, activity ActivitySource, p *parser.Parser, opts ...Option) *Server {
	s := &Server{
		Streams:  streams,
		Activity: activity,
		parser:   p,
		cache:    cache.New(defaultCacheTTL, cacheCleanupPeriod),
		gatherer: prometheus.DefaultGatherer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /streams/{address}", s.StreamHandler)
	if s.Lister != nil {
		mux.HandleFunc("GET /streams", s.StreamsHandler)
	}
	mux.HandleFunc("GET /activity", s.ActivityHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// StreamHandler handles /streams/{address}.
func (s *Server) StreamHandler(w http.ResponseWriter, r *http.Request) {
	address, ok := s.address(w, r.PathValue("address"))
	if !ok {
		return
	}
	presentation, ok := s.presentation(w, r)
	if !ok {
		return
	}

	stream, err := s.stream(r.Context(), address)
	if err != nil {
		s.fail(w, "fetching stream", address, err)
		return
	}
	s.respond(w, stream.Present(presentation))
}

func (s *Server) stream(ctx context.Context, address solana.PublicKey) (models.Stream, error) {
	if cached, ok := s.cache.Get(address.String()); ok {
		return s.parser.ParseStreamCached(cached.(models.Stream)), nil
	}

	stream, err := s.Streams.Stream(ctx, address)
	if errors.Is(err, ErrNotFound) && s.Archive != nil {
		archived, archiveErr := s.Archive.Load(ctx, address)
		if archiveErr != nil {
			if !errors.Is(archiveErr, storage.ErrNotFound) {
				s.logger.Warn("error loading archived stream", zap.Stringer("address", address), zap.Error(archiveErr))
			}
			return models.Stream{}, err
		}
		stream, err = s.parser.ParseStreamCached(archived), nil
	}
	if err != nil {
		return models.Stream{}, err
	}
	s.cache.SetDefault(address.String(), stream)
	return stream, nil
}

// StreamsHandler handles /streams?treasurer=&treasury=&beneficiary=.
func (s *Server) StreamsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var filter parser.StreamFilter
	for name, target := range map[string]**solana.PublicKey{
		"treasurer":   &filter.Treasurer,
		"treasury":    &filter.Treasury,
		"beneficiary": &filter.Beneficiary,
	} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		address, ok := s.address(w, raw)
		if !ok {
			return
		}
		*target = &address
	}
	presentation, ok := s.presentation(w, r)
	if !ok {
		return
	}

	cacheKey := "list?treasurer=" + query.Get("treasurer") +
		"&treasury=" + query.Get("treasury") +
		"&beneficiary=" + query.Get("beneficiary")
	var streams []models.Stream
	if cached, ok := s.cache.Get(cacheKey); ok {
		streams = s.parser.ParseStreamsCached(cached.([]models.Stream))
	} else {
		streams = s.Lister.Streams(filter)
		s.cache.SetDefault(cacheKey, streams)
	}

	out := make([]any, 0, len(streams))
	for _, stream := range streams {
		out = append(out, stream.Present(presentation))
	}
	s.respond(w, out)
}

// ActivityHandler handles /activity?address=...&kind=stream|treasury.
func (s *Server) ActivityHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("address") == "" {
		http.Error(w, "Missing 'address' query parameter", http.StatusBadRequest)
		return
	}
	address, ok := s.address(w, query.Get("address"))
	if !ok {
		return
	}
	presentation, ok := s.presentation(w, r)
	if !ok {
		return
	}

	switch kind := query.Get("kind"); kind {
	case "", "stream":
		events, err := s.Activity.StreamActivity(r.Context(), address)
		if err != nil {
			s.fail(w, "fetching stream activity", address, err)
			return
		}
		out := make([]any, 0, len(events))
		for _, e := range events {
			out = append(out, e.Present(presentation))
		}
		s.respond(w, out)
	case "treasury":
		events, err := s.Activity.TreasuryActivity(r.Context(), address)
		if err != nil {
			s.fail(w, "fetching treasury activity", address, err)
			return
		}
		out := make([]any, 0, len(events))
		for _, e := range events {
			out = append(out, e.Present(presentation))
		}
		s.respond(w, out)
	default:
		http.Error(w, "Invalid 'kind'. Use stream or treasury.", http.StatusBadRequest)
	}
}

func (s *Server) address(w http.ResponseWriter, raw string) (solana.PublicKey, bool) {
	address, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		http.Error(w, "Invalid address", http.StatusBadRequest)
		return solana.PublicKey{}, false
	}
	return address, true
}

func (s *Server) presentation(w http.ResponseWriter, r *http.Request) (models.Presentation, bool) {
	friendly := s.friendly
	if raw := r.URL.Query().Get("friendly"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid 'friendly' query parameter", http.StatusBadRequest)
			return models.Raw, false
		}
		friendly = parsed
	}
	if friendly {
		return models.Friendly, true
	}
	return models.Raw, true
}

func (s *Server) fail(w http.ResponseWriter, what string, address solana.PublicKey, err error) {
	if errors.Is(err, ErrNotFound) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	s.logger.Error("request failed", zap.String("op", what), zap.Stringer("address", address), zap.Error(err))
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}

func (s *Server) respond(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("error encoding response", zap.Error(err))
	}
}

// StartServer serves handler on addr until ctx is cancelled.
func StartServer(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("API server is running", zap.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
