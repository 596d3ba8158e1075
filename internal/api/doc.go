// Package api implements the HTTP facade over the task execution pool:
// token issuance, task submission (single, all, batch), pool statistics,
// and the settlement journal. Handlers translate pool errors into stable
// HTTP status codes without leaking internal detail.
package api
