package state

import "time"

// Stats represents current relay stats for the status API.
type Stats struct {
	Phase         string   `json:"phase"`
	Ready         bool     `json:"ready"`
	Closing       bool     `json:"closing"`
	Session       *Session `json:"session,omitempty"`
	TotalSessions int64    `json:"total_sessions"`
	Relayed       int64    `json:"relayed"`
	PipeFailures  int64    `json:"pipe_failures"`
	StreamErrors  int64    `json:"stream_errors"`
	BytesToSocket int64    `json:"bytes_to_socket"`
	BytesToPipe   int64    `json:"bytes_to_pipe"`
	LastError     string   `json:"last_error,omitempty"`
	Now           string   `json:"now"`
}

// Session is the connection currently being served.
type Session struct {
	ID      string    `json:"id"`
	Remote  string    `json:"remote"`
	Pipe    string    `json:"pipe"`
	Started time.Time `json:"started"`
}
