// Package httpclient is the request pipeline every backend call goes
// through.
//
// For each request the pipeline:
//   - renews the access token first when it is about to expire (pre-flight),
//     joining a refresh that is already running;
//   - attaches "Authorization: Bearer <token>" unless the request opts out;
//   - retries network failures, 5xx, 408 and 429 with exponential backoff;
//   - on the first 401 refreshes reactively through the token manager's
//     single-flight slot and replays the request exactly once;
//   - on a 401 from the replay gives up with common.ErrAuthenticationExpired
//     and asks the session owner to tear the session down.
//
// Other 4xx responses are returned as *APIError without retrying.
package httpclient
