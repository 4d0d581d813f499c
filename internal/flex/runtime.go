package flex

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2voxel-go/internal/logger"
)

// Runtime runs a Lua script that decides which type classes a way belongs to.
//
// The script defines osm2voxel.classify_way(object), where object has the
// fields id, tags and is_closed. It returns nil, a single type name, or a
// list of type names.
type Runtime struct {
	L           *lua.LState
	classifyWay lua.LValue
	mu          sync.Mutex
}

// NewRuntime creates a new Lua runtime with the osm2voxel API
func NewRuntime() *Runtime {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	r := &Runtime{L: L}
	r.registerAPI()
	return r
}

// Close releases Lua resources
func (r *Runtime) Close() {
	r.L.Close()
}

// registerAPI registers the osm2voxel Lua module
func (r *Runtime) registerAPI() {
	mod := r.L.NewTable()
	mod.RawSetString("version", lua.LString("1.0.0"))
	r.L.SetGlobal("osm2voxel", mod)

	RegisterTransforms(r.L)

	r.L.SetGlobal("print", r.L.NewFunction(r.luaPrint))
}

// LoadFile loads and executes a Lua classification script
func (r *Runtime) LoadFile(path string) error {
	if err := r.L.DoFile(path); err != nil {
		return fmt.Errorf("failed to load Lua file: %w", err)
	}
	return r.extractCallbacks()
}

// LoadString loads and executes Lua code from a string
func (r *Runtime) LoadString(code string) error {
	if err := r.L.DoString(code); err != nil {
		return fmt.Errorf("failed to load Lua code: %w", err)
	}
	return r.extractCallbacks()
}

// extractCallbacks picks classify_way out of the osm2voxel table
func (r *Runtime) extractCallbacks() error {
	mod, ok := r.L.GetGlobal("osm2voxel").(*lua.LTable)
	if !ok {
		return fmt.Errorf("script replaced the osm2voxel table")
	}
	r.classifyWay = mod.RawGetString("classify_way")
	if !r.HasClassifyWay() {
		return fmt.Errorf("script does not define osm2voxel.classify_way")
	}
	return nil
}

// HasClassifyWay returns true if classify_way is defined
func (r *Runtime) HasClassifyWay() bool {
	return r.classifyWay != nil && r.classifyWay.Type() == lua.LTFunction
}

// Classify calls classify_way for one way and returns its type names,
// deduplicated and sorted
func (r *Runtime) Classify(id int64, tags map[string]string, closed bool) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj := r.L.NewTable()
	obj.RawSetString("id", lua.LNumber(id))
	obj.RawSetString("is_closed", lua.LBool(closed))
	luaTags := r.L.NewTable()
	for k, v := range tags {
		luaTags.RawSetString(k, lua.LString(v))
	}
	obj.RawSetString("tags", luaTags)

	if err := r.L.CallByParam(lua.P{
		Fn:      r.classifyWay,
		NRet:    1,
		Protect: true,
	}, obj); err != nil {
		return nil, fmt.Errorf("classify_way failed for way %d: %w", id, err)
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)

	var types []string
	switch v := ret.(type) {
	case lua.LString:
		types = append(types, string(v))
	case *lua.LTable:
		v.ForEach(func(_, value lua.LValue) {
			if s, ok := value.(lua.LString); ok {
				types = append(types, string(s))
			}
		})
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		if !v {
			return nil, nil
		}
		return nil, fmt.Errorf("classify_way returned true for way %d, want string or table", id)
	default:
		return nil, fmt.Errorf("classify_way returned %s for way %d, want string or table", ret.Type(), id)
	}
	return normalize(types), nil
}

// normalize drops empty names and duplicates and sorts the rest
func normalize(types []string) []string {
	if len(types) == 0 {
		return nil
	}
	sort.Strings(types)
	out := types[:0]
	for i, t := range types {
		if t == "" || (i > 0 && t == types[i-1]) {
			continue
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// luaPrint routes print() from scripts to the debug log
func (r *Runtime) luaPrint(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	logger.Get().Debug("lua", zap.String("output", strings.Join(parts, "\t")))
	return 0
}
