// Package auth guards the worker control endpoint.
//
// Two credential types are understood: a static API key sent in X-API-Key,
// stored only as its SHA-256 hash, and an HMAC-signed JWT bearer token.
// Composite tries them in order and Require turns any Authenticator into
// HTTP middleware:
//
//	authn := auth.NewComposite(
//	    auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{}, auth.HashAPIKey(key)),
//	    auth.NewJWTAuthenticator(auth.JWTConfig{Secret: secret, Issuer: "offlinekit"}),
//	)
//	mux.Handle("/_worker/message", auth.Require(authn, auth.RoleControl)(handler))
package auth
