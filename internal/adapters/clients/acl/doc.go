// Package acl is the anti-corruption layer between the garden and the
// language model provider.
//
// The provider's SDK types (chat messages, response formats, API errors)
// stop here. Callers see only [domain.CompletionRequest], a plain string
// reply, and domain errors.
//
// # Error Handling Strategy
//
// Every provider failure becomes [domain.ErrUnavailable]:
//   - transport and DNS failures
//   - non-2xx answers, including 429 after the client's retries
//   - timeouts and cancellations
//   - [clients.ErrCircuitOpen] while the breaker is open
//   - a reply without choices or with blank content
//
// The reason is kept on [domain.UnavailableError] for logs. The HTTP layer
// never shows it to clients.
package acl
