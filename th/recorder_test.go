/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package th

import (
	"testing"

	core "github.com/badu/httpcore"
)

func TestRecorderDefaultsToStatusOK(t *testing.T) {
	rw := NewRecorder()
	if _, err := rw.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rw.Code != core.StatusOK {
		t.Fatalf("got Code %d, want %d", rw.Code, core.StatusOK)
	}
	if rw.Body.String() != "hello" {
		t.Fatalf("got body %q, want \"hello\"", rw.Body.String())
	}
}

func TestRecorderExplicitWriteHeaderWins(t *testing.T) {
	rw := NewRecorder()
	rw.WriteHeader(core.StatusTeapot)
	if _, err := rw.Write([]byte("body")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rw.Code != core.StatusTeapot {
		t.Fatalf("got Code %d, want %d", rw.Code, core.StatusTeapot)
	}
}

func TestRecorderSecondWriteHeaderIgnored(t *testing.T) {
	rw := NewRecorder()
	rw.WriteHeader(core.StatusCreated)
	rw.WriteHeader(core.StatusInternalServerError)
	if rw.Code != core.StatusCreated {
		t.Fatalf("got Code %d, want %d (first WriteHeader call wins)", rw.Code, core.StatusCreated)
	}
}

func TestRecorderWriteSniffsContentTypeWhenUnset(t *testing.T) {
	rw := NewRecorder()
	if _, err := rw.Write([]byte("<html><body>hi</body></html>")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ct := rw.HeaderMap.Get("Content-Type")
	if ct == "" {
		t.Fatal("expected Write to populate a sniffed Content-Type")
	}
}

func TestRecorderWriteRespectsExplicitContentType(t *testing.T) {
	rw := NewRecorder()
	rw.Header().Set("Content-Type", "application/json")
	if _, err := rw.Write([]byte("{}")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if ct := rw.HeaderMap.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("got Content-Type %q, want application/json", ct)
	}
}

func TestRecorderFlushSetsFlushedAndWritesHeader(t *testing.T) {
	rw := NewRecorder()
	if rw.Flushed {
		t.Fatal("Flushed must start false")
	}
	rw.Flush()
	if !rw.Flushed {
		t.Fatal("Flush must set Flushed")
	}
	if rw.Code != core.StatusOK {
		t.Fatalf("Flush without a prior WriteHeader must default Code to %d, got %d", core.StatusOK, rw.Code)
	}
}

func TestRecorderWriteStringDiscardedWithoutBody(t *testing.T) {
	rw := NewRecorder()
	rw.Body = nil
	n, err := rw.WriteString("ignored")
	if err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if n != len("ignored") {
		t.Fatalf("got n=%d, want %d", n, len("ignored"))
	}
}
