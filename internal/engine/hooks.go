package engine

import "github.com/roach88/novella/internal/ir"

// HookFuncs adapts plain functions to Hooks. A nil dispatch func returns
// Continue; nil OnChangeStable and OnError funcs are ignored.
type HookFuncs struct {
	Label        func(name string, line int, tick int64) (Control, error)
	SaveMark     func(name, comment string, line int, tick int64) (Control, error)
	Js           func(expr string, print bool, line int, tick int64) (Control, error)
	Tag          func(tag ir.Tag, line int, tick int64) (Control, error)
	ChangeStable func(stable bool)
	Error        func(err error)
}

var _ Hooks = HookFuncs{}

func (h HookFuncs) OnLabel(name string, line int, tick int64) (Control, error) {
	if h.Label == nil {
		return Continue, nil
	}
	return h.Label(name, line, tick)
}

func (h HookFuncs) OnSaveMark(name, comment string, line int, tick int64) (Control, error) {
	if h.SaveMark == nil {
		return Continue, nil
	}
	return h.SaveMark(name, comment, line, tick)
}

func (h HookFuncs) OnJs(expr string, print bool, line int, tick int64) (Control, error) {
	if h.Js == nil {
		return Continue, nil
	}
	return h.Js(expr, print, line, tick)
}

func (h HookFuncs) OnTag(tag ir.Tag, line int, tick int64) (Control, error) {
	if h.Tag == nil {
		return Continue, nil
	}
	return h.Tag(tag, line, tick)
}

func (h HookFuncs) OnChangeStable(stable bool) {
	if h.ChangeStable != nil {
		h.ChangeStable(stable)
	}
}

func (h HookFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}
