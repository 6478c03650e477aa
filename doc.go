// Package auth implements phone based signup, JWT sessions carried in
// cookies, and role based authorization for the portal backend.
//
// Tokens:
//   - TokenCodec signs and verifies HMAC JWTs. Decode never returns a bare
//     error: it reports a DecodeResult that is either valid, expired (claims
//     still available, signature verified) or invalid.
//   - TokenService issues access tokens (30 minutes by default) and refresh
//     tokens (30 days by default). Each token carries a "type" claim so an
//     access token is never accepted where a refresh token is expected.
//
// Sessions:
//   - SessionResolver turns the access and refresh cookie values into an
//     authenticated User. An expired access token paired with a valid refresh
//     token yields exactly one replacement access token. When both are
//     expired the resolver reports SessionBothExpired without an error so the
//     HTTP layer can clear cookies.
//
// Authorization:
//   - CanModify encodes who may mutate another user's data: self, admins over
//     plain users, owners over everyone. PlanRoleGrant and PlanRoleRevoke
//     gate privilege changes to owners only.
//
// Signup:
//   - SignupFlow.Begin stores a PendingRegistration holding a bcrypt hash of a
//     five digit code and sends the code through a CodeSender.
//     SignupFlow.Verify checks the code and retires the pending record inside
//     a single transaction, so two concurrent verifications of the same
//     record produce at most one user.
//
// Activity sinks:
//   - ActivitySink receives audit events (signup, refresh, role changes).
//     Sinks run best effort and their errors are only logged.
package auth
