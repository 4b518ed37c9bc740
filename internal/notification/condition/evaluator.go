// Package condition evaluates administrator-supplied boolean expressions
// against a document, inside a capability-limited Lua state. Only the doc
// table is visible; no Lua standard libraries are opened.
package condition

import (
	"context"
	"time"

	stderrors "whatsapp-dispatch/internal/common/errors"
	"whatsapp-dispatch/internal/notification/document"

	lua "github.com/yuin/gopher-lua"
)

// Evaluate runs expr with the document bound as "doc" and returns its truthiness.
// An empty expression is treated as true.
func Evaluate(ctx context.Context, expr string, doc *document.Document) (bool, error) {
	if expr == "" {
		return true, nil
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	L.SetContext(ctx)

	L.SetGlobal("doc", docTable(L, doc))

	if err := L.DoString("return " + expr); err != nil {
		return false, stderrors.NewConditionError(expr, err)
	}

	return lua.LVAsBool(L.Get(-1)), nil
}

func docTable(L *lua.LState, doc *document.Document) *lua.LTable {
	tbl := L.NewTable()
	tbl.RawSetString("doctype", lua.LString(doc.Doctype))
	tbl.RawSetString("name", lua.LString(doc.Name))
	for field, value := range doc.Fields {
		tbl.RawSetString(field, toLValue(value))
	}
	return tbl
}

func toLValue(v interface{}) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case []byte:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 {
			return lua.LString(val.Format("2006-01-02"))
		}
		return lua.LString(val.Format("2006-01-02 15:04:05"))
	default:
		return lua.LNil
	}
}
