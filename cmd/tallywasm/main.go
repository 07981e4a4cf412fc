//go:build js && wasm

package main

import "syscall/js"

func main() {
	js.Global().Set("__tallyPreview", js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) < 1 {
			return mustJSON(failed("invalid_request", "missing request payload"))
		}
		return mustJSON(handlePreview(args[0].String()))
	}))

	select {}
}
