package server

import (
	"git.home.luguber.info/inful/apkbuilder/internal/eventstore"
	"git.home.luguber.info/inful/apkbuilder/internal/ledger"
)

// SubmitResponse is the 202 body returned when a build is accepted. The
// field names are part of the public API and match the ledger record shape.
type SubmitResponse struct {
	Success     bool    `json:"success"`
	Message     string  `json:"message"`
	BuildID     string  `json:"buildId"`
	URL         string  `json:"url"`
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	Status      string  `json:"status"`
	CheckStatus string  `json:"checkStatus"`
	DownloadURL *string `json:"downloadUrl"` // always null at acceptance time
	Timestamp   string  `json:"timestamp"`
}

// StatusResponse wraps a single build record.
type StatusResponse struct {
	Success bool          `json:"success"`
	Data    ledger.Record `json:"data"`
}

// LogsData is the history payload: total count plus the newest-first page.
type LogsData struct {
	Total  int             `json:"total"`
	Builds []ledger.Record `json:"builds"`
}

// LogsResponse wraps the build history.
type LogsResponse struct {
	Success bool     `json:"success"`
	Data    LogsData `json:"data"`
}

// EventsResponse wraps the transition journal of one build.
type EventsResponse struct {
	Success bool                    `json:"success"`
	Data    []eventstore.Transition `json:"data"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status       string  `json:"status"`
	Uptime       float64 `json:"uptime"`
	ActiveBuilds int     `json:"active_builds"`
}
