package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/doorman-proxy/doorman/pkg/apis/options"
	"github.com/doorman-proxy/doorman/pkg/apis/verdict"
	"github.com/doorman-proxy/doorman/pkg/app/redirect"
	"github.com/doorman-proxy/doorman/pkg/audit"
	"github.com/doorman-proxy/doorman/pkg/authentication/basic"
	"github.com/doorman-proxy/doorman/pkg/authentication/token"
	"github.com/doorman-proxy/doorman/pkg/authorization"
	"github.com/doorman-proxy/doorman/pkg/cache"
	"github.com/doorman-proxy/doorman/pkg/geoip"
	"github.com/doorman-proxy/doorman/pkg/ip"
	"github.com/doorman-proxy/doorman/pkg/logger"
	"github.com/doorman-proxy/doorman/pkg/middleware"
	"github.com/doorman-proxy/doorman/pkg/sessions"
	"github.com/doorman-proxy/doorman/pkg/store"
	"github.com/doorman-proxy/doorman/pkg/userauth"
	"github.com/doorman-proxy/doorman/pkg/verify"
)

// Doorman ties the decision engine to its HTTP surface.
type Doorman struct {
	verifier *verify.Verifier
	cache    cache.Store
	handler  http.Handler
}

// NewDoorman creates a new Doorman from the options given.
func NewDoorman(opts *options.Options) (*Doorman, error) {
	dataset, err := store.NewFromFile(opts.Store.File)
	if err != nil {
		return nil, fmt.Errorf("error loading resource store: %w", err)
	}

	cacheStore, err := newCacheStore(opts.Cache)
	if err != nil {
		return nil, fmt.Errorf("error initialising cache: %w", err)
	}

	geo, err := newGeoProvider(opts.GeoIP, cacheStore)
	if err != nil {
		return nil, fmt.Errorf("error loading GeoIP database: %w", err)
	}

	ipSets, err := parseIPSets(opts.Verify.IPSets)
	if err != nil {
		return nil, fmt.Errorf("error parsing IP sets: %w", err)
	}

	redirects, err := redirect.NewBuilder(dataset, opts.Verify.DashboardURL)
	if err != nil {
		return nil, fmt.Errorf("error building redirect builder: %w", err)
	}

	users := userauth.NewResolver(dataset, cacheStore)
	users.RequireVerifiedEmail = opts.Verify.RequireVerifiedEmail

	verifier := verify.NewVerifier(
		dataset,
		cacheStore,
		authorization.NewEngine(dataset, cacheStore, ipSets),
		geo,
		basic.NewStoreValidator(dataset, cacheStore),
		token.NewStoreVerifier(dataset),
		sessions.NewLoader(dataset, cacheStore),
		users,
		redirects,
		audit.NewLogRecorder(prometheus.DefaultRegisterer),
		verify.Config{
			CookieName:        opts.Verify.CookieName,
			TokenIDHeader:     opts.Verify.TokenIDHeader,
			TokenSecretHeader: opts.Verify.TokenSecretHeader,
			TokenQueryParam:   opts.Verify.TokenQueryParam,
		},
	)

	d := &Doorman{
		verifier: verifier,
		cache:    cacheStore,
	}
	d.handler = d.buildHandler(opts)
	return d, nil
}

func (d *Doorman) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	d.handler.ServeHTTP(rw, req)
}

func (d *Doorman) buildHandler(opts *options.Options) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/verify", d.handleVerify).Methods(http.MethodPost)
	router.HandleFunc("/ping", d.handlePing).Methods(http.MethodGet)
	router.HandleFunc("/ready", d.handleReady).Methods(http.MethodGet)
	router.Handle("/metrics", middleware.NewMetricsHandlerWithDefaultRegistry()).Methods(http.MethodGet)

	chain := alice.New(
		middleware.NewScope(opts.Logging.RequestIDHeader),
		middleware.NewRequestLogger(),
		middleware.NewRequestMetricsWithDefaultRegistry(),
		middleware.NewRecovery(),
	)
	return chain.Then(router)
}

func (d *Doorman) handleVerify(rw http.ResponseWriter, req *http.Request) {
	var verifyReq verdict.VerifyRequest
	if err := json.NewDecoder(req.Body).Decode(&verifyReq); err != nil {
		http.Error(rw, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := d.verifier.Verify(req.Context(), &verifyReq)
	if err != nil {
		if errors.Is(err, verify.ErrMalformedRequest) {
			http.Error(rw, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Errorf("error verifying request for host %q: %v", verifyReq.Host, err)
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(resp); err != nil {
		logger.Errorf("error encoding verify response: %v", err)
	}
}

func (d *Doorman) handlePing(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("OK"))
}

func (d *Doorman) handleReady(rw http.ResponseWriter, req *http.Request) {
	if err := d.cache.Ping(req.Context()); err != nil {
		logger.Errorf("readiness check failed: %v", err)
		http.Error(rw, "cache unavailable", http.StatusServiceUnavailable)
		return
	}
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("OK"))
}

func newCacheStore(opts options.Cache) (cache.Store, error) {
	switch opts.Type {
	case options.CacheTypeRedis:
		return cache.NewRedisStore(opts.RedisConnectionURL)
	default:
		return cache.NewMemoryStore(), nil
	}
}

func newGeoProvider(opts options.GeoIP, cacheStore cache.Store) (geoip.Provider, error) {
	if opts.File == "" {
		return nil, nil
	}
	static, err := geoip.NewStaticProvider(opts.File)
	if err != nil {
		return nil, err
	}
	return geoip.NewCachedProvider(static, cacheStore), nil
}

// parseIPSets turns "name=cidr[,cidr...]" entries into named network sets.
func parseIPSets(entries []string) (map[string]*ip.NetSet, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	sets := make(map[string]*ip.NetSet, len(entries))
	for _, entry := range entries {
		name, cidrs, found := strings.Cut(entry, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("malformed ip-set %q", entry)
		}
		set := ip.NewNetSet()
		for _, cidr := range strings.Split(cidrs, ",") {
			ipNet := ip.ParseIPNet(strings.TrimSpace(cidr))
			if ipNet == nil {
				return nil, fmt.Errorf("malformed network %q in ip-set %q", cidr, name)
			}
			set.AddIPNet(*ipNet)
		}
		sets[name] = set
	}
	return sets, nil
}
