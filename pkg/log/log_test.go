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

package log

import (
	"os"
	"testing"
)

type recordingEmitter struct {
	lines []string
}

func (r *recordingEmitter) Emit(level Level, format string, v []interface{}) {
	r.lines = append(r.lines, levelPrefix(level))
}

func TestSetLevelFiltersDebug(t *testing.T) {
	rec := &recordingEmitter{}
	SetTarget(rec)
	defer SetTarget(&basicEmitter{w: os.Stderr})

	SetLevel(Info)
	Debugf("hidden")
	if len(rec.lines) != 0 {
		t.Fatalf("expected Debugf to be filtered at Info level, got %v", rec.lines)
	}

	SetLevel(Debug)
	Debugf("shown")
	if len(rec.lines) != 1 {
		t.Fatalf("expected Debugf to be emitted at Debug level, got %v", rec.lines)
	}
}

func TestIsLogging(t *testing.T) {
	SetLevel(Warning)
	if IsLogging(Debug) {
		t.Errorf("IsLogging(Debug) should be false when min level is Warning")
	}
	if !IsLogging(Warning) {
		t.Errorf("IsLogging(Warning) should be true when min level is Warning")
	}
	SetLevel(Info)
}
