// Package auth establishes who is calling the decision API.
//
// # Overview
//
// Callers present the ID token they obtained from the tenant's identity
// provider as a bearer token. The token is verified against the issuer's
// published keys and reduced to an Identity carrying the email the access
// engine keys everything on.
//
//	verifier, err := auth.NewOIDCVerifier(ctx, issuerURL, clientID)
//	mw := auth.NewMiddleware(verifier, log)
//	router.Use(mw.Handler)
//
// Handlers downstream read the caller with IdentityFromContext.
//
// Acquiring or refreshing tokens is left to the client.
package auth
