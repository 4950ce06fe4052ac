package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dshills/luadbg/internal/debug"
	"github.com/dshills/luadbg/internal/runtime"
)

func plainRenderer(maxDepth int) (*Renderer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return NewRenderer(buf, false, maxDepth), buf
}

func TestRenderer_StackCapsDepth(t *testing.T) {
	r, buf := plainRenderer(2)
	tr := &debug.StackTrace{Frames: []*debug.FrameSnapshot{
		{Depth: 0, Function: "inner", File: "a.lua", Line: 2},
		{Depth: 1, Function: "outer", File: "a.lua", Line: 6},
		{Depth: 2, Function: "main", File: "a.lua", Line: 9},
	}}

	r.Stack(tr, 1)
	out := buf.String()
	if !strings.Contains(out, "  #0 inner at a.lua:2") {
		t.Errorf("unselected frame missing:\n%s", out)
	}
	if !strings.Contains(out, "> #1 outer at a.lua:6") {
		t.Errorf("selected marker missing:\n%s", out)
	}
	if strings.Contains(out, "main") {
		t.Errorf("frame beyond the cap rendered:\n%s", out)
	}
	if !strings.Contains(out, "... 1 more frames") {
		t.Errorf("overflow note missing:\n%s", out)
	}
}

func TestRenderer_StackEmpty(t *testing.T) {
	r, buf := plainRenderer(0)
	r.Stack(nil, 0)
	if !strings.Contains(buf.String(), "(no stack)") {
		t.Errorf("empty trace rendering:\n%s", buf.String())
	}
}

func TestRenderer_TerminatedVariants(t *testing.T) {
	cases := []struct {
		payload debug.TerminatedPayload
		want    string
	}{
		{debug.TerminatedPayload{Stopped: true}, "-- stopped"},
		{debug.TerminatedPayload{Err: "boom"}, "-- terminated: boom"},
		{debug.TerminatedPayload{}, "-- finished"},
	}
	for _, tc := range cases {
		r, buf := plainRenderer(0)
		r.Terminated(tc.payload)
		if !strings.Contains(buf.String(), tc.want) {
			t.Errorf("terminated %+v = %q, want %q", tc.payload, buf.String(), tc.want)
		}
	}
}

func TestRenderer_ValuesEmpty(t *testing.T) {
	r, buf := plainRenderer(0)
	r.Values(nil)
	if !strings.Contains(buf.String(), "(none)") {
		t.Errorf("empty scope rendering:\n%s", buf.String())
	}
}

func TestRenderer_ValueShowsType(t *testing.T) {
	r, buf := plainRenderer(0)
	r.Value("name", runtime.StringValue("zork"))
	out := buf.String()
	if !strings.Contains(out, "name = ") || !strings.Contains(out, "(string)") {
		t.Errorf("value rendering:\n%s", out)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("short input = %q", got)
	}
}
