// Package flex embeds a Lua hook for tag post-processing. A script defines
// nvdb2osm.process_way(tags); the pipeline calls it once per input segment,
// before segments are joined into ways. It returns the replacement tag
// table, or nil to drop the segment from the output.
package flex

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Runtime manages one Lua interpreter. Not safe for concurrent use; the
// driver creates one runtime per worker.
type Runtime struct {
	L          *lua.LState
	processWay lua.LValue
}

// NewRuntime creates a Lua runtime with the nvdb2osm API registered.
func NewRuntime() *Runtime {
	L := lua.NewState()
	r := &Runtime{L: L}

	api := L.NewTable()
	api.RawSetString("version", lua.LString("1.0.0"))
	L.SetGlobal("nvdb2osm", api)

	return r
}

// Close releases the interpreter.
func (r *Runtime) Close() {
	r.L.Close()
}

// LoadFile loads and executes a hook script from disk.
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("load lua script: %w", err)
	}
	r.extractCallback()
	return nil
}

// LoadString loads a hook from a string (for testing).
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("load lua code: %w", err)
	}
	r.extractCallback()
	return nil
}

func (r *Runtime) extractCallback() {
	if api, ok := r.L.GetGlobal("nvdb2osm").(*lua.LTable); ok {
		r.processWay = api.RawGetString("process_way")
	}
}

// Active reports whether a process_way callback is installed.
func (r *Runtime) Active() bool {
	return r.processWay != nil && r.processWay.Type() == lua.LTFunction
}

// ProcessWay runs the hook over one tag set. keep=false means the script
// rejected the way.
func (r *Runtime) ProcessWay(tags map[string]string) (out map[string]string, keep bool, err error) {
	if !r.Active() {
		return tags, true, nil
	}

	tbl := r.L.NewTable()
	for k, v := range tags {
		tbl.RawSetString(k, lua.LString(v))
	}

	if err := r.L.CallByParam(lua.P{Fn: r.processWay, NRet: 1, Protect: true}, tbl); err != nil {
		return nil, false, fmt.Errorf("process_way: %w", err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	switch v := ret.(type) {
	case *lua.LNilType:
		return nil, false, nil
	case lua.LBool:
		if !v {
			return nil, false, nil
		}
		return tags, true, nil
	case *lua.LTable:
		out = make(map[string]string)
		v.ForEach(func(key, value lua.LValue) {
			if key.Type() == lua.LTString {
				out[key.String()] = value.String()
			}
		})
		return out, true, nil
	default:
		return nil, false, fmt.Errorf("process_way returned %s, want table, bool or nil", ret.Type())
	}
}
