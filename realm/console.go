package realm

import (
	"strings"

	"github.com/dop251/goja"
)

func (r *Realm) installConsole(global *goja.Object) error {
	log := r.logger.Named("console").Sugar()
	console := r.vm.NewObject()
	levels := map[string]func(string, ...any){
		"log":   log.Infow,
		"info":  log.Infow,
		"warn":  log.Warnw,
		"error": log.Errorw,
		"debug": log.Debugw,
	}
	for name, emit := range levels {
		err := console.Set(name, func(call goja.FunctionCall) goja.Value {
			emit(format(call.Arguments))
			return goja.Undefined()
		})
		if err != nil {
			return err
		}
	}
	return global.Set("console", console)
}

func format(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}
