// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides the diagnostic-logging facade used throughout the
// VM core, in place of the original kernel's dbgln_if/dmesgln call sites.
package log

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a log severity.
type Level int32

const (
	// Debug is for fault-path tracing normally compiled out in the
	// original (dbgln_if(PAGE_FAULT_DEBUG, ...) etc).
	Debug Level = iota
	// Info is for routine, always-on notices.
	Info
	// Warning is for recoverable anomalies (dmesgln in the original).
	Warning
)

// Emitter receives formatted log lines.
type Emitter interface {
	Emit(level Level, format string, v []interface{})
}

// basicEmitter writes to an *os.File with a timestamp and level prefix.
type basicEmitter struct {
	mu sync.Mutex
	w  *os.File
}

func (e *basicEmitter) Emit(level Level, format string, v []interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fmt.Fprintf(e.w, "%s %s %s\n", time.Now().UTC().Format(time.RFC3339Nano), levelPrefix(level), fmt.Sprintf(format, v...))
}

func levelPrefix(l Level) string {
	switch l {
	case Debug:
		return "D"
	case Warning:
		return "W"
	default:
		return "I"
	}
}

var (
	target   atomic.Pointer[Emitter]
	minLevel atomic.Int32
)

func init() {
	SetTarget(&basicEmitter{w: os.Stderr})
	minLevel.Store(int32(Info))
}

// SetTarget replaces the package-wide log sink.
func SetTarget(e Emitter) {
	target.Store(&e)
}

// SetLevel sets the minimum level that is actually emitted.
func SetLevel(l Level) {
	minLevel.Store(int32(l))
}

// IsLogging returns whether l would currently be emitted, letting callers
// skip building an expensive message (the Go analog of dbgln_if's guard).
func IsLogging(l Level) bool {
	return int32(l) >= minLevel.Load()
}

func emit(l Level, format string, v ...interface{}) {
	if !IsLogging(l) {
		return
	}
	(*target.Load()).Emit(l, format, v)
}

// Debugf logs at Debug level.
func Debugf(format string, v ...interface{}) { emit(Debug, format, v...) }

// Infof logs at Info level.
func Infof(format string, v ...interface{}) { emit(Info, format, v...) }

// Warningf logs at Warning level.
func Warningf(format string, v ...interface{}) { emit(Warning, format, v...) }
