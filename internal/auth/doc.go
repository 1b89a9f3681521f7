// Package auth authenticates chat clients to the gateway API.
//
// Clients present an HS256 JWT as a bearer token. The token's subject is the
// user id; the gateway trusts it over any user_id in a request body.
//
//	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	handler = auth.HTTPAuthMiddleware(verifier)(handler)
//
// Handlers read the identity with UserFromContext. Tokens are minted with
// Generate, which the gateway's "token" subcommand exposes.
package auth
