package flex

import (
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// areaKeys are tag keys that make a closed way an area unless area=no
var areaKeys = []string{
	"building", "landuse", "natural", "water", "waterway",
	"leisure", "amenity", "shop", "tourism", "place",
}

// RegisterTransforms registers tag helper functions as osm2voxel.transforms
// and the most common ones as globals
func RegisterTransforms(L *lua.LState) {
	transforms := L.NewTable()
	L.SetField(transforms, "trim", L.NewFunction(luaTrim))
	L.SetField(transforms, "lower", L.NewFunction(luaLower))
	L.SetField(transforms, "parse_int", L.NewFunction(luaParseInt))
	L.SetField(transforms, "parse_bool", L.NewFunction(luaParseBool))
	L.SetField(transforms, "is_area", L.NewFunction(luaIsArea))
	L.SetField(transforms, "has_any", L.NewFunction(luaHasAny))

	mod, ok := L.GetGlobal("osm2voxel").(*lua.LTable)
	if !ok {
		mod = L.NewTable()
		L.SetGlobal("osm2voxel", mod)
	}
	L.SetField(mod, "transforms", transforms)

	L.SetGlobal("trim", L.NewFunction(luaTrim))
	L.SetGlobal("parse_int", L.NewFunction(luaParseInt))
	L.SetGlobal("parse_bool", L.NewFunction(luaParseBool))
	L.SetGlobal("is_area", L.NewFunction(luaIsArea))
	L.SetGlobal("has_any", L.NewFunction(luaHasAny))
}

func luaTrim(L *lua.LState) int {
	L.Push(lua.LString(strings.TrimSpace(L.CheckString(1))))
	return 1
}

func luaLower(L *lua.LState) int {
	L.Push(lua.LString(strings.ToLower(L.CheckString(1))))
	return 1
}

// luaParseInt parses an integer, truncating decimals; unparsable values
// return the optional default (0)
func luaParseInt(L *lua.LState) int {
	s := strings.TrimSpace(L.CheckString(1))
	def := L.OptInt64(2, 0)

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		L.Push(lua.LNumber(v))
	} else if f, err := strconv.ParseFloat(s, 64); err == nil {
		L.Push(lua.LNumber(int64(f)))
	} else {
		L.Push(lua.LNumber(def))
	}
	return 1
}

// luaParseBool treats OSM-style values: no/false/0/off and empty are false,
// anything else is true
func luaParseBool(L *lua.LState) int {
	switch strings.ToLower(strings.TrimSpace(L.CheckString(1))) {
	case "no", "false", "0", "off", "":
		L.Push(lua.LFalse)
	default:
		L.Push(lua.LTrue)
	}
	return 1
}

// luaIsArea implements is_area(tags, is_closed)
func luaIsArea(L *lua.LState) int {
	tags := L.CheckTable(1)
	if L.GetTop() >= 2 && !L.CheckBool(2) {
		L.Push(lua.LFalse)
		return 1
	}

	switch strings.ToLower(lua.LVAsString(tags.RawGetString("area"))) {
	case "yes":
		L.Push(lua.LTrue)
		return 1
	case "no":
		L.Push(lua.LFalse)
		return 1
	}

	for _, key := range areaKeys {
		if v := tags.RawGetString(key); v != lua.LNil && lua.LVAsString(v) != "" {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}

// luaHasAny implements has_any(tags, key1, key2, ...)
func luaHasAny(L *lua.LState) int {
	tags := L.CheckTable(1)
	for i := 2; i <= L.GetTop(); i++ {
		if tags.RawGetString(L.CheckString(i)) != lua.LNil {
			L.Push(lua.LTrue)
			return 1
		}
	}
	L.Push(lua.LFalse)
	return 1
}
