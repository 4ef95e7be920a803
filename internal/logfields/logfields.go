// Package logfields defines canonical slog attribute helpers so field names
// stay consistent across packages.
package logfields

import "log/slog"

const (
	KeyBuildID    = "build_id"
	KeyStatus     = "build_status"
	KeyStage      = "stage"
	KeyURL        = "url"
	KeyPath       = "path"
	KeyName       = "name"
	KeyVersion    = "version"
	KeyDurationMS = "duration_ms"
	KeyMethod     = "method"
	KeyHTTPStatus = "status"
	KeyRemoteAddr = "remote_addr"
	KeyError      = "error"
)

func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Status(s string) slog.Attr        { return slog.String(KeyStatus, s) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Name(n string) slog.Attr          { return slog.String(KeyName, n) }
func Version(v string) slog.Attr       { return slog.String(KeyVersion, v) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func HTTPStatus(code int) slog.Attr    { return slog.Int(KeyHTTPStatus, code) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
