package opshttp

import (
	"net/http"

	"github.com/keithlinneman/sampleform/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// OnPanic is called after a panic in an admin handler is recovered.
	OnPanic func()
}
