// Package redisstore implements store.Store on Redis.
//
// # Layout
//
// Each user is one JSON document plus index keys:
//
//	{prefix}:user:{id}     JSON document, token slots included
//	{prefix}:email:{email} → id
//	{prefix}:vt:{token}    → id (verification)
//	{prefix}:rt:{token}    → id (password reset)
//
// # Consistency
//
// Every mutation WATCHes the document (and, on create, the email key), then
// writes the document and its index keys in one MULTI/EXEC. Contended
// transactions retry a bounded number of times. Lookups by token confirm the
// document still holds that token, so a lost index delete can never revive a
// superseded token.
//
// # What this package must NOT do
//
//   - Set TTLs on token keys; expiry is judged by the engine, and expired
//     tokens must stay resolvable until replaced or consumed.
package redisstore
