package tool_test

import (
	"context"
	"testing"

	"github.com/mirrortwin/companion/internal/model/tool"
)

type fakeTool struct {
	name string
}

func (f fakeTool) Name() string        { return f.name }
func (f fakeTool) Description() string { return "fake" }
func (f fakeTool) Call(context.Context, string) (tool.Result, error) {
	return tool.Result{Content: "{}"}, nil
}

func TestMapRegistryRegisterAndGet(t *testing.T) {
	reg := tool.NewMapRegistry()
	reg.Register(fakeTool{name: "search_web"})

	got, ok := reg.Get("search_web")
	if !ok {
		t.Fatal("expected registered tool")
	}
	if got.Name() != "search_web" {
		t.Fatalf("unexpected tool name: %s", got.Name())
	}

	if _, ok := reg.Get("missing"); ok {
		t.Fatal("expected lookup miss for unregistered tool")
	}
}

func TestMapRegistryExcluding(t *testing.T) {
	reg := tool.NewMapRegistry()
	reg.Register(fakeTool{name: "search_web"})
	reg.Register(fakeTool{name: "send_to_chat"})

	filtered := reg.Excluding("send_to_chat")

	if _, ok := filtered.Get("send_to_chat"); ok {
		t.Fatal("excluded tool should not resolve")
	}
	if _, ok := filtered.Get("search_web"); !ok {
		t.Fatal("non-excluded tool should resolve")
	}
	if got := len(filtered.All()); got != 1 {
		t.Fatalf("expected 1 tool after exclusion, got %d", got)
	}

	// Exclusions accumulate across chained views.
	narrower := filtered.Excluding("search_web")
	if got := len(narrower.All()); got != 0 {
		t.Fatalf("expected empty registry view, got %d tools", got)
	}
	if got := len(reg.All()); got != 2 {
		t.Fatalf("base registry should be untouched, got %d tools", got)
	}
}
