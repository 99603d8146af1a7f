package transcribe

// RTF maps known model identifiers to an empirical real-time factor:
// processing seconds per second of audio on a typical CPU host.
var RTF = map[string]float64{
	"tiny":     0.4,
	"base":     0.8,
	"small":    1.2,
	"medium":   2.0,
	"large-v3": 3.0,
}

// ResolveModel returns requested when it is a known model, otherwise def.
// Unknown identifiers are not rejected.
func ResolveModel(requested, def string) string {
	if _, ok := RTF[requested]; ok {
		return requested
	}
	return def
}

// SpeedFactor returns the real-time factor for model, or 1.0 if the model is
// not in the table (possible when the configured default is a custom model).
func SpeedFactor(model string) float64 {
	if f, ok := RTF[model]; ok {
		return f
	}
	return 1.0
}
