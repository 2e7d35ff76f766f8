package httpapi

import (
	"net/http"
	"strings"
	"time"

	stayAuth "github.com/MrEthical07/stayAuth"
	"github.com/MrEthical07/stayAuth/middleware"
	"go.uber.org/zap"
)

// Config controls the HTTP surface. Zero values fall back to the
// defaults in New.
type Config struct {
	BasePath    string
	ServiceName string
	CORSOrigins []string
	// TrustProxy makes X-Forwarded-For the source of client IPs.
	TrustProxy bool

	CookieSameSite http.SameSite
	CookieSecure   bool

	CaptchaPerMinute int
	CaptchaBurst     int
	MaxBodyBytes     int64

	// MetricsHandler, when set, is served at GET /metrics.
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

const (
	defaultBasePath = "/api"
	defaultService  = "stayease-server"
	defaultOrigin   = "http://localhost:5173"
)

// API holds the routes. Close releases the captcha limiter sweep.
type API struct {
	engine  *stayAuth.Engine
	cfg     Config
	logger  *zap.Logger
	cookies cookieJar
	captcha *middleware.IPRateLimiter
	handler http.Handler
}

func New(engine *stayAuth.Engine, cfg Config) *API {
	cfg.BasePath = "/" + strings.Trim(cfg.BasePath, "/")
	if cfg.BasePath == "/" {
		cfg.BasePath = defaultBasePath
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = defaultService
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{defaultOrigin}
	}
	if cfg.CookieSameSite == 0 {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	if cfg.CaptchaPerMinute <= 0 {
		cfg.CaptchaPerMinute = 30
	}
	if cfg.CaptchaBurst <= 0 {
		cfg.CaptchaBurst = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &API{
		engine: engine,
		cfg:    cfg,
		logger: logger.Named("httpapi"),
		cookies: cookieJar{
			path:     cfg.BasePath + "/auth",
			sameSite: cfg.CookieSameSite,
			secure:   cfg.CookieSecure || engine.ProductionMode() || cfg.CookieSameSite == http.SameSiteNoneMode,
			maxAge:   engine.RefreshTTL(),
		},
		captcha: middleware.NewIPRateLimiter(cfg.CaptchaPerMinute, cfg.CaptchaBurst, cfg.TrustProxy, logger),
	}

	mux := http.NewServeMux()
	a.routes(mux)
	a.handler = middleware.Chain(mux,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
		middleware.CORS(cfg.CORSOrigins),
		middleware.ClientInfo(cfg.TrustProxy),
	)
	return a
}

func (a *API) Handler() http.Handler { return a.handler }

func (a *API) Close() { a.captcha.Close() }

func (a *API) routes(mux *http.ServeMux) {
	base := a.cfg.BasePath
	auth := middleware.RequireAuth(a.engine)

	mux.HandleFunc("GET "+base+"/health", a.health)
	mux.Handle("GET "+base+"/captcha", a.captcha.Handler(http.HandlerFunc(a.issueCaptcha)))

	mux.HandleFunc("POST "+base+"/auth/register", a.register)
	mux.HandleFunc("POST "+base+"/auth/register/request-otp", a.requestOTP)
	mux.HandleFunc("POST "+base+"/auth/register/verify-otp", a.verifyOTP)
	mux.HandleFunc("POST "+base+"/auth/login", a.login)
	mux.HandleFunc("POST "+base+"/auth/refresh", a.refresh)
	mux.HandleFunc("POST "+base+"/auth/logout", a.logout)
	mux.HandleFunc("POST "+base+"/auth/forgot-password", a.forgotPassword)
	mux.HandleFunc("POST "+base+"/auth/reset-password", a.resetPassword)

	mux.Handle("POST "+base+"/auth/change-password", auth(http.HandlerFunc(a.changePassword)))
	mux.Handle("GET "+base+"/auth/me", auth(http.HandlerFunc(a.me)))
	mux.Handle("PUT "+base+"/auth/me", auth(http.HandlerFunc(a.updateMe)))

	if a.cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", a.cfg.MetricsHandler)
	}
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, healthResponse{
		OK:      true,
		Service: a.cfg.ServiceName,
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (a *API) issueCaptcha(w http.ResponseWriter, r *http.Request) {
	ch, err := a.engine.IssueCaptcha(r.Context(), r.URL.Query().Get("purpose"))
	if err != nil {
		a.fail(w, r, err, "Could not create CAPTCHA.")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, ch)
}
