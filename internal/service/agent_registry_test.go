package service

import (
	"errors"
	"testing"
	"time"

	"github.com/Suyash-Gaurav/gaas-system/internal/clock"
	"github.com/Suyash-Gaurav/gaas-system/internal/domain/agent"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	reg := NewAgentRegistry(clk)

	a, err := reg.Register(agent.Agent{
		ID:           "agent-1",
		Name:         "reporter",
		Capabilities: []string{"read"},
		AgentType:    "automation",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if a.Status != agent.StatusActive {
		t.Errorf("status = %q, want active", a.Status)
	}
	if !a.RegisteredAt.Equal(clk.Now()) {
		t.Errorf("registered at = %v, want clock instant", a.RegisteredAt)
	}

	got, err := reg.Get("agent-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "reporter" {
		t.Errorf("name = %q", got.Name)
	}

	if _, err := reg.Get("missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("Get(missing) = %v, want ErrAgentNotFound", err)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewAgentRegistry(clock.System())
	if _, err := reg.Register(agent.Agent{ID: "agent-1", Name: "first"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := reg.Register(agent.Agent{ID: "agent-1", Name: "second"}); !errors.Is(err, agent.ErrAgentExists) {
		t.Fatalf("duplicate Register = %v, want ErrAgentExists", err)
	}

	got, _ := reg.Get("agent-1")
	if got.Name != "first" {
		t.Errorf("duplicate registration must not overwrite, name = %q", got.Name)
	}
}

func TestRegistryRequireActive(t *testing.T) {
	reg := NewAgentRegistry(clock.System())
	reg.Register(agent.Agent{ID: "agent-1"})

	if _, err := reg.RequireActive("agent-1"); err != nil {
		t.Errorf("RequireActive on fresh agent: %v", err)
	}

	reg.Suspend("agent-1")
	if _, err := reg.RequireActive("agent-1"); !errors.Is(err, agent.ErrAgentNotActive) {
		t.Errorf("RequireActive on suspended agent = %v, want ErrAgentNotActive", err)
	}

	if _, err := reg.RequireActive("missing"); !errors.Is(err, agent.ErrAgentNotFound) {
		t.Errorf("RequireActive(missing) = %v, want ErrAgentNotFound", err)
	}
}

func TestRegistryListNewestFirst(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))
	reg := NewAgentRegistry(clk)

	for _, id := range []string{"agent-a", "agent-b", "agent-c"} {
		reg.Register(agent.Agent{ID: id})
		clk.Advance(time.Minute)
	}

	list := reg.List()
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3", len(list))
	}
	for i, want := range []string{"agent-c", "agent-b", "agent-a"} {
		if list[i].ID != want {
			t.Errorf("list[%d].ID = %q, want %q", i, list[i].ID, want)
		}
	}
	if reg.Count() != 3 {
		t.Errorf("count = %d, want 3", reg.Count())
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	reg := NewAgentRegistry(clock.System())
	reg.Register(agent.Agent{ID: "agent-1", Name: "original"})

	got, _ := reg.Get("agent-1")
	got.Name = "mutated"

	again, _ := reg.Get("agent-1")
	if again.Name != "original" {
		t.Errorf("registry contents mutated through the returned copy: %q", again.Name)
	}
}
