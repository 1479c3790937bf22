package handlers

import "zap-shift-api/lifecycle"

var engine *lifecycle.Engine

// Init wires the lifecycle engine that parcel and payment handlers delegate
// to. Called once at startup (and by tests with their own engine).
func Init(e *lifecycle.Engine) {
	engine = e
}
