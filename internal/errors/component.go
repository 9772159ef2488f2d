package errors

import (
	"runtime"
	"strings"
)

// ComponentUnknown is reported when no component could be determined
const ComponentUnknown = "unknown"

const errorsPackage = "edaschema/internal/errors"

// packageComponents maps package paths to component names
var packageComponents = []struct{ path, component string }{
	{"internal/schema", "schema"},
	{"internal/entity", "entity"},
	{"internal/graph", "graph"},
	{"internal/datastore", "datastore"},
	{"internal/dataset", "dataset"},
	{"internal/snapshot", "snapshot"},
	{"internal/conf", "configuration"},
}

// detectComponent names the component of the first caller outside this
// package. Unregistered packages are named after their last path element.
func detectComponent() string {
	pcs := make([]uintptr, 32)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(3, pcs)])
	for {
		frame, more := frames.Next()
		if fn := frame.Function; fn != "" && !strings.Contains(fn, errorsPackage) {
			return componentOf(fn)
		}
		if !more {
			return ComponentUnknown
		}
	}
}

func componentOf(funcName string) string {
	for _, pc := range packageComponents {
		if strings.Contains(funcName, pc.path) {
			return pc.component
		}
	}
	last := funcName[strings.LastIndex(funcName, "/")+1:]
	if dot := strings.IndexByte(last, '.'); dot > 0 {
		return last[:dot]
	}
	return ComponentUnknown
}
