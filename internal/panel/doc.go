// Package panel serves the topic browser web UI as an embedded asset.
//
// The page lists the Homie devices the bridge publishes and follows the
// inspector's topic tree live over the API WebSocket. It is plain HTML and
// JavaScript embedded with go:embed, so the binary has no runtime dependency
// on external files.
//
// Handler serves the assets with SPA fallback routing: if a requested file
// does not exist, index.html is served. Every response is marked no-cache
// since the assets are not content-hashed.
package panel
