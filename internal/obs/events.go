package obs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jpillora/sizestr"
)

// EventID identifies a relay log event. Ids and message templates are part
// of the log schema consumed by downstream sinks; do not renumber.
type EventID int

const (
	EventWaitingData              EventID = 1
	EventReceivedData             EventID = 2
	EventSentData                 EventID = 3
	EventConnectionClosed         EventID = 4
	EventSocketConnectionWaiting  EventID = 5
	EventSocketConnectionAccepted EventID = 6
	EventPipeConnected            EventID = 7
	EventPipeConnectFailed        EventID = 8
	EventRelayCompleted           EventID = 9
	EventAcceptFailed             EventID = 10
	EventConnectionRejected       EventID = 11
	EventPumpFailed               EventID = 12
)

// Direction scopes used by the two pumps of a relay.
const (
	ScopePipeToSocket = "P2S"
	ScopeSocketToPipe = "S2P"
)

func (l *Logger) event(id EventID, level slog.Level, name, msg string, f Fields) {
	if !l.Enabled(level) {
		return
	}
	if f == nil {
		f = Fields{}
	}
	f["event"] = name
	f["event_id"] = int(id)
	l.log(level, msg, f)
}

// Scope returns a logger tagged with a pump direction.
func (l *Logger) Scope(scope string) *Logger {
	return l.With(Fields{"scope": scope})
}

func (l *Logger) WaitingData() {
	l.event(EventWaitingData, LevelTrace, "relay.waiting", "Waiting data.", nil)
}

func (l *Logger) ReceivedData(n int) {
	l.event(EventReceivedData, LevelTrace, "relay.received",
		fmt.Sprintf("Received %d bytes.", n), Fields{"bytes_received": n})
}

func (l *Logger) SentData(n int) {
	l.event(EventSentData, LevelTrace, "relay.sent",
		fmt.Sprintf("Sent %d bytes.", n), Fields{"bytes_sent": n})
}

func (l *Logger) ConnectionClosed() {
	l.event(EventConnectionClosed, slog.LevelInfo, "relay.closed", "Connection closed.", nil)
}

func (l *Logger) SocketConnectionWaiting(local fmt.Stringer) {
	l.event(EventSocketConnectionWaiting, slog.LevelInfo, "socket.waiting",
		fmt.Sprintf("Waiting socket connection on %s.", local), Fields{"local_endpoint": local.String()})
}

func (l *Logger) SocketConnectionAccepted(remote fmt.Stringer) {
	l.event(EventSocketConnectionAccepted, slog.LevelInfo, "socket.accepted",
		fmt.Sprintf("Connection accepted from %s.", remote), Fields{"remote_endpoint": remote.String()})
}

func (l *Logger) PipeConnected(pipe string, took time.Duration) {
	l.event(EventPipeConnected, slog.LevelInfo, "pipe.connected",
		fmt.Sprintf("Pipe %s connected.", pipe), Fields{"pipe": pipe, "took": took.String()})
}

func (l *Logger) PipeConnectFailed(pipe string, err error) {
	l.event(EventPipeConnectFailed, slog.LevelWarn, "pipe.connect_failed",
		fmt.Sprintf("Pipe %s connect failed.", pipe), Fields{"pipe": pipe, "err": err.Error()})
}

// RelayCompleted summarises one iteration; byte counts are per direction.
func (l *Logger) RelayCompleted(toSocket, toPipe int64, took time.Duration) {
	l.event(EventRelayCompleted, slog.LevelInfo, "relay.completed",
		fmt.Sprintf("Relay completed (pipe->socket %s, socket->pipe %s).", sizestr.ToString(toSocket), sizestr.ToString(toPipe)),
		Fields{"bytes_to_socket": toSocket, "bytes_to_pipe": toPipe, "took": took.String()})
}

func (l *Logger) AcceptFailed(err error) {
	l.event(EventAcceptFailed, slog.LevelError, "socket.accept_failed", "Accept failed.", Fields{"err": err.Error()})
}

func (l *Logger) ConnectionRejected(remote fmt.Stringer) {
	l.event(EventConnectionRejected, slog.LevelWarn, "socket.rejected",
		fmt.Sprintf("Connection from %s rejected by admission limit.", remote), Fields{"remote_endpoint": remote.String()})
}

func (l *Logger) PumpFailed(err error) {
	l.event(EventPumpFailed, slog.LevelWarn, "relay.pump_failed", "Pump failed.", Fields{"err": err.Error()})
}
