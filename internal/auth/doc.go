// Package auth issues and verifies the signed bearer credentials handed to the
// browser after a federated login completes.
//
// A credential is an HS256 JWT carrying the caller's internal identity and the
// upstream access/refresh tokens obtained during login. Credentials are
// self-contained: no issued credential is stored server-side, and verification
// is by signature and expiry alone. The trade-off is statelessness over
// revocability.
//
// [Issuer.Verify] is the only decode path. Every caller that extracts
// identity or upstream tokens from a credential goes through it, so a
// credential that fails signature or expiry checks is rejected uniformly.
package auth
