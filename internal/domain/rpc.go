package domain

// RPCHealthSnapshot is the RPC pool's point-in-time health report
// (spec §3, §4.1).
type RPCHealthSnapshot struct {
	RequestEndpoint string
	Healthy         bool
	LatencyMS       int64
	PushEndpoint    string
	PushConnected   bool
}
