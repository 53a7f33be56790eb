// Package auth resolves who is making a request and decides where that
// request may go.
//
// Identity comes from either an scs cookie session (web pages) or a hashed
// API bearer token (API clients). The Gate middleware combines the resolved
// identity with a single role lookup and a static Policy table, then
// redirects, rejects or passes the request through before any handler runs.
//
// # Configuration
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>      # CSRF key; generated if empty
//	AUTH_SESSION_LIFETIME=24h               # session duration, refreshed at half-life
//	AUTH_TOKEN_EXPIRY=720h                  # API token expiry
//	AUTH_BCRYPT_COST=12                     # bcrypt cost factor
//	AUTH_SECURE_COOKIES=true                # HTTPS-only cookies
//	AUTH_ROLE_LOOKUP_FAILURE=anonymous      # or "unavailable" (503)
//
// # Usage
//
//	gate := auth.NewGate(auth.GateConfig{
//		Identities: auth.NewChainResolver(sessions, auth.NewBearerResolver(service)),
//		Roles:      profileRepo,
//		Refresher:  sessions,
//	}, logger)
//	router.Use(sessions.SessionLoadSave(), gate.Handler())
//
// Handlers read the outcome with auth.GetUserID(c) and auth.GetRole(c).
package auth
