package webmcp

import "log/slog"

// SingleRegistrar is a host registry accepting one tool at a time.
type SingleRegistrar interface {
	RegisterTool(t Tool) error
}

// BatchRegistrar is a host registry accepting a whole tool batch.
type BatchRegistrar interface {
	ProvideContext(tools []Tool) error
}

// Capability is the host's tool-registration capability, detected once and
// dispatched on instead of re-probing per call.
type Capability int

const (
	Unsupported Capability = iota
	SingleRegister
	BatchRegister
)

func (c Capability) String() string {
	switch c {
	case SingleRegister:
		return "single"
	case BatchRegister:
		return "batch"
	}
	return "unsupported"
}

// DetectCapability probes the host once. Batch registration is preferred
// when the host supports both.
func DetectCapability(host any) Capability {
	switch host.(type) {
	case BatchRegistrar:
		return BatchRegister
	case SingleRegistrar:
		return SingleRegister
	}
	return Unsupported
}

// Register pushes tools into the host registry according to its detected
// capability. Host failures are caught and logged per tool, never
// propagated: one failing registration does not block the others. Returns
// summaries of the tools that registered successfully; nil when the host
// has no tool-calling capability.
func Register(host any, tools []Tool, logger *slog.Logger) []Registered {
	if logger == nil {
		logger = slog.Default()
	}

	switch DetectCapability(host) {
	case BatchRegister:
		reg := host.(BatchRegistrar)
		if err := callBatch(reg, tools); err != nil {
			logger.Warn("webmcp: batch registration failed", "error", err, "tools", len(tools))
			return []Registered{}
		}
		out := make([]Registered, 0, len(tools))
		for _, t := range tools {
			out = append(out, Registered{Name: t.Name, Description: t.Description, Source: "auto"})
		}
		logger.Debug("webmcp: registered tools via batch", "count", len(out))
		return out

	case SingleRegister:
		reg := host.(SingleRegistrar)
		out := []Registered{}
		for _, t := range tools {
			if err := callSingle(reg, t); err != nil {
				logger.Warn("webmcp: tool registration failed", "tool", t.Name, "error", err)
				continue
			}
			out = append(out, Registered{Name: t.Name, Description: t.Description, Source: "auto"})
			logger.Debug("webmcp: registered tool", "tool", t.Name)
		}
		return out
	}

	logger.Debug("webmcp: host has no tool-calling capability")
	return nil
}

// callBatch shields against hosts that panic instead of returning errors.
func callBatch(reg BatchRegistrar, tools []Tool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return reg.ProvideContext(tools)
}

func callSingle(reg SingleRegistrar, t Tool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return reg.RegisterTool(t)
}

type hostPanic struct{ value any }

func (p hostPanic) Error() string { return "host registry panic" }

func panicError(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return hostPanic{value: v}
}
