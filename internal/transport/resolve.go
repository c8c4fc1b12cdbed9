package transport

import "fmt"

// Transport selection modes.
const (
	ModeAuto = "auto"
	ModePTY  = "pty"
	ModePipe = "pipe"
)

// ValidModes lists the accepted selection modes.
func ValidModes() []string {
	return []string{ModeAuto, ModePTY, ModePipe}
}

// Resolve picks the transport for mode and the fallback to use when the
// preferred transport fails to spawn. fallback is nil when there is none.
//
// In auto mode a host without pseudo-terminal support goes straight to the
// pipe transport; the probe failure is logged, not returned.
func Resolve(mode string, opts Options) (preferred, fallback Transport, err error) {
	opts = opts.withDefaults()
	switch mode {
	case ModeAuto, "":
		p := NewPTY(opts)
		if perr := p.Probe(); perr != nil {
			opts.Logger.Warn("pseudo-terminal unavailable, using plain output", "error", perr.Error())
			return NewPipe(opts), nil, nil
		}
		return p, NewPipe(opts), nil
	case ModePTY:
		return NewPTY(opts), NewPipe(opts), nil
	case ModePipe:
		return NewPipe(opts), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", mode)
	}
}
