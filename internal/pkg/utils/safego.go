package utils

import (
	"log"
	"runtime/debug"
)

// SafeGo runs fn on a new goroutine. A panic is logged with its stack
// instead of taking the process down.
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("event=goroutine_panic name=%s panic=%v stack=%s", name, r, debug.Stack())
			}
		}()
		fn()
	}()
}
