package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/pprof"
)

// RegisterPprofRoutes mounts the runtime profiler under /debug/pprof.
//
//	curl http://localhost:3000/debug/pprof/profile?seconds=30 > cpu.prof
//	go tool pprof cpu.prof
func RegisterPprofRoutes(app *fiber.App) {
	app.Use(pprof.New())
}
