package handlers

import (
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zenithAPI/middleware"
)

type Router struct {
	Health      *HealthHandler
	Users       *UserHandler
	Categories  *CategoryHandler
	Challenges  *ChallengeHandler
	Submissions *SubmissionHandler
	Rewards     *RewardHandler
	Webhooks    *WebhookHandler
	// Chat is optional; its routes are only mounted when set.
	Chat *ChatHandler

	// Auth authenticates /api/v1 requests.
	Auth        func(http.Handler) http.Handler
	IsAdmin     func(clerkID string) bool
	RateLimit   func(http.Handler) http.Handler
	MetricsUser string
	MetricsPass string
	PprofSecret string
}

func (rt *Router) Handler() *mux.Router {
	r := mux.NewRouter()

	if rt.RateLimit != nil {
		r.Use(rt.RateLimit)
	}
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(rt.MetricsUser, rt.MetricsPass)(promhttp.Handler())).Methods("GET")
	if rt.PprofSecret != "" {
		debug := r.PathPrefix("/debug/pprof").Subrouter()
		debug.Use(middleware.PprofSecurityMiddleware(rt.PprofSecret))
		debug.HandleFunc("/", pprof.Index)
		debug.HandleFunc("/cmdline", pprof.Cmdline)
		debug.HandleFunc("/profile", pprof.Profile)
		debug.HandleFunc("/symbol", pprof.Symbol)
		debug.HandleFunc("/trace", pprof.Trace)
		debug.PathPrefix("/").HandlerFunc(pprof.Index)
	}

	r.HandleFunc("/health", rt.Health.Health).Methods("GET")
	r.HandleFunc("/categories", rt.Categories.ListCategories).Methods("GET")
	r.HandleFunc("/webhooks/clerk", rt.Webhooks.HandleClerkWebhook).Methods("POST")
	r.HandleFunc("/webhooks/payout", rt.Webhooks.HandlePayoutWebhook).Methods("POST")

	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(rt.Auth)

	protected.HandleFunc("/user", rt.Users.GetProfile).Methods("GET")
	protected.HandleFunc("/user/interests", rt.Users.UpdateInterests).Methods("PUT")

	protected.HandleFunc("/categories/ids", rt.Categories.GetCategoriesByIDs).Methods("GET")

	protected.HandleFunc("/challenges", rt.Challenges.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenge/{id}", rt.Challenges.GetChallenge).Methods("GET")

	protected.HandleFunc("/submission", rt.Submissions.CreateSubmission).Methods("POST")
	protected.HandleFunc("/submission/{id}", rt.Submissions.GetSubmission).Methods("GET")
	protected.HandleFunc("/submissions/recent", rt.Submissions.GetRecentSubmissions).Methods("GET")
	protected.HandleFunc("/submissions", rt.Submissions.GetSubmissionForChallenge).Methods("GET")

	protected.HandleFunc("/reward/entry", rt.Rewards.CreateRewardEntry).Methods("POST")
	protected.HandleFunc("/reward/history", rt.Rewards.GetRewardHistory).Methods("GET")
	protected.HandleFunc("/reward/{id}", rt.Rewards.GetRewardEntry).Methods("GET")

	if rt.Chat != nil {
		protected.HandleFunc("/chat/query", rt.Chat.Query).Methods("POST")
		protected.HandleFunc("/chat/all", rt.Chat.History).Methods("GET")
	}

	admin := protected.NewRoute().Subrouter()
	admin.Use(middleware.AdminOnly(rt.IsAdmin))
	admin.HandleFunc("/category", rt.Categories.CreateCategory).Methods("POST")
	admin.HandleFunc("/challenge", rt.Challenges.CreateChallenge).Methods("POST")
	admin.HandleFunc("/submission/{id}", rt.Submissions.UpdateSubmissionStatus).Methods("PATCH")

	return r
}
