package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/novella/internal/engine"
	"github.com/roach88/novella/internal/ir"
)

// Tags the console host understands. Anything else is logged at Debug and
// skipped.
const (
	tagBreak     = "r"
	tagPage      = "p"
	tagWait      = "wait"
	tagStop      = "s"
	tagJump      = "jump"
	tagTrans     = "trans"
	tagMove      = "move"
	tagAnim      = "anim"
	tagPlaySound = "playse"
	tagFadeSound = "fadese"
)

// effectEvents maps an effect tag to the event reporting its completion.
// The console has no renderer, so every effect completes on the next tick.
var effectEvents = map[string]string{
	tagTrans:     engine.EventTrans,
	tagMove:      engine.EventMove,
	tagAnim:      engine.EventFrameAnim,
	tagPlaySound: engine.EventSoundStop,
	tagFadeSound: engine.EventSoundFade,
}

// awaitEvents maps a wait tag to the event it blocks on.
var awaitEvents = map[string]string{
	"wt": engine.EventTrans,
	"wm": engine.EventMove,
	"wa": engine.EventFrameAnim,
	"ws": engine.EventSoundStop,
	"wf": engine.EventSoundFade,
}

// evaluator runs js tag bodies.
type evaluator interface {
	Eval(ctx context.Context, src string) (ir.Value, error)
}

// consoleHost plays a script as plain text. It is the Hooks implementation
// behind `novella run`.
type consoleHost struct {
	ctx       context.Context
	out       io.Writer
	logger    *slog.Logger
	eval      evaluator
	driver    *engine.Driver
	conductor *engine.Conductor

	// errs counts OnError reports.
	errs int
}

var _ engine.Hooks = (*consoleHost)(nil)

func (h *consoleHost) OnLabel(name string, line int, tick int64) (engine.Control, error) {
	h.logger.Debug("label", "name", name, "line", line, "tick", tick)
	return engine.Continue, nil
}

func (h *consoleHost) OnSaveMark(name, comment string, line int, tick int64) (engine.Control, error) {
	h.logger.Debug("save mark", "name", name, "comment", comment, "line", line, "tick", tick,
		"read", h.conductor.IsPassedLatestSaveMark())
	return engine.Continue, nil
}

func (h *consoleHost) OnJs(expr string, print bool, line int, tick int64) (engine.Control, error) {
	v, err := h.eval.Eval(h.ctx, expr)
	if err != nil {
		h.logger.Error("js failed", "line", line, "tick", tick, "error", err)
		h.errs++
		return engine.Continue, nil
	}
	if print {
		fmt.Fprint(h.out, ir.Text(v))
	}
	return engine.Continue, nil
}

func (h *consoleHost) OnTag(tag ir.Tag, line int, tick int64) (engine.Control, error) {
	kind := tag.Kind()

	if event, ok := effectEvents[kind]; ok {
		h.driver.Post(h.conductor.Name(), event)
		return engine.Continue, nil
	}
	if event, ok := awaitEvents[kind]; ok {
		c := h.conductor
		c.AddEventHandler(engine.NewEventHandler(event, func() { c.Start() }))
		return c.Stop(), nil
	}

	switch kind {
	case tagBreak, ir.KindLineBreak:
		fmt.Fprintln(h.out)
	case tagPage:
		fmt.Fprint(h.out, "\n\n")
	case tagWait:
		ticks, _ := tag.Int("time")
		return h.conductor.Sleep(tick, ticks, kind), nil
	case tagStop:
		return h.conductor.Stop(), nil
	case tagJump:
		err := h.conductor.Jump(h.ctx, tag.String("storage"), tag.String("target"), tag.Bool("countpage"))
		if err != nil {
			h.logger.Debug("jump failed", "line", line, "error", err)
			return h.conductor.Stop(), nil
		}
	default:
		if text := tag.String(ir.KeyText); text != "" {
			fmt.Fprint(h.out, text)
			return engine.Continue, nil
		}
		h.logger.Debug("tag skipped", "kind", kind, "line", line, "tick", tick)
	}
	return engine.Continue, nil
}

func (h *consoleHost) OnChangeStable(stable bool) {
	h.logger.Debug("stable changed", "conductor", h.conductor.Name(), "stable", stable)
}

func (h *consoleHost) OnError(err error) {
	h.errs++
	h.logger.Error("conductor error", "conductor", h.conductor.Name(), "error", err)
}
