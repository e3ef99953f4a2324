// Package handler implements the per-source capture strategies.
//
// Every government publisher organizes its files differently: flat listing
// pages, hub pages that fan out to monthly or yearly subpages, paginated
// portals, living report files at fixed URLs, and JSON APIs. Each method
// name in the sources configuration maps to one Handler here that encodes
// that structure. Handlers share an Env carrying the fetch client, the
// capture manifest, API clients and run context, so the incremental
// behavior (skip what the manifest already has, record what was taken) is
// uniform across strategies.
package handler
