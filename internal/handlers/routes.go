package handlers

import "net/http"

// Router bundles the handlers served by the API
type Router struct {
	Middleware *Middleware
	Auth       *AuthHandler
	OAuth      *OAuthHandler
	Decks      *DeckHandler
	Study      *StudyHandler
	Startup    *StartupStatus
}

// Handler registers every route on a new ServeMux wrapped with request logging
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	m := rt.Middleware
	protected := func(h http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(m.CSRFProtect(h))
	}

	if rt.Startup != nil {
		mux.Handle("GET /healthz", rt.Startup)
	}

	// Authentication
	mux.HandleFunc("POST /api/register", m.RateLimit(rt.Auth.Register))
	mux.HandleFunc("POST /api/login", m.RateLimit(rt.Auth.Login))
	mux.HandleFunc("POST /api/token", m.RateLimit(rt.Auth.IssueToken))
	mux.HandleFunc("POST /api/password/forgot", m.RateLimit(rt.Auth.ForgotPassword))
	mux.HandleFunc("POST /api/password/reset", m.RateLimit(rt.Auth.ResetPassword))
	mux.HandleFunc("POST /api/logout", protected(rt.Auth.Logout))
	mux.HandleFunc("GET /api/me", protected(rt.Auth.Me))

	if rt.OAuth != nil {
		mux.HandleFunc("GET /api/auth/providers", rt.OAuth.ListProviders)
		mux.HandleFunc("GET /auth/{provider}/start", rt.OAuth.StartOAuth)
		mux.HandleFunc("GET /auth/{provider}/callback", rt.OAuth.OAuthCallback)
	}

	// Decks and cards
	mux.HandleFunc("GET /api/decks", protected(rt.Decks.ListDecks))
	mux.HandleFunc("POST /api/decks", protected(rt.Decks.CreateDeck))
	mux.HandleFunc("GET /api/decks/{deckId}", protected(rt.Decks.GetDeck))
	mux.HandleFunc("DELETE /api/decks/{deckId}", protected(rt.Decks.DeleteDeck))
	mux.HandleFunc("POST /api/decks/{deckId}/cards", protected(rt.Decks.CreateCard))
	mux.HandleFunc("DELETE /api/decks/{deckId}/cards/{cardId}", protected(rt.Decks.DeleteCard))
	mux.HandleFunc("GET /api/decks/{deckId}/due", protected(rt.Decks.DueCards))
	mux.HandleFunc("GET /api/decks/{deckId}/chapters", protected(rt.Decks.Chapters))

	// Study sessions
	mux.HandleFunc("POST /api/decks/{deckId}/study", protected(rt.Study.StartStudy))
	mux.HandleFunc("POST /api/decks/{deckId}/study/new", protected(rt.Study.StartNewStudy))
	mux.HandleFunc("GET /api/study/{sessionId}", protected(rt.Study.GetSession))
	mux.HandleFunc("POST /api/study/{sessionId}/items/{itemId}/review", protected(rt.Study.Review))

	return Logging(mux)
}
