// Package auth verifies connection credentials for ease-gateway.
//
// # Tokens
//
// Clients authenticate with HS256 JWTs signed with the configured
// jwt_secret (at least MinSecretLength bytes). The "sub" claim is the
// user identity and "exp" is required:
//
//	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
//	token, err := verifier.Generate("alice@example.com", 24*time.Hour)
//	identity, err := verifier.Verify(token)
//
// Account management lives outside the gateway; Generate exists for the
// `ease-gateway token` command and tests.
//
// # Handshake
//
// HTTPAuthMiddleware runs before the websocket upgrade. The token is read
// from the Authorization header ("Bearer <token>") or the "token" query
// parameter. Failures are answered with 401 and never reach the upgrade, so
// no session or presence entry is created. On success the identity is
// available through IdentityFromContext.
package auth
