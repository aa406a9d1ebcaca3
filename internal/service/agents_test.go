package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
)

func TestAvailableAgents_OwnerFirst(t *testing.T) {
	d := &AgentDirectory{Source: crm.NewDemoSource(), Logger: zerolog.Nop()}
	agents, err := d.Available(context.Background(), "00001001")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 4 {
		t.Fatalf("expected owner plus 3 agents, got %d", len(agents))
	}
	if agents[0].AgentName != "Sarah Chen" || agents[0].Skills[0] != "Case Owner" {
		t.Fatalf("expected case owner first, got %+v", agents[0])
	}
	for _, a := range agents[1:] {
		if a.AgentID == agents[0].AgentID {
			t.Fatalf("owner listed twice")
		}
		if a.Skills[0] != "Support Agent" || a.AvailabilityStatus != "available" {
			t.Fatalf("unexpected agent entry %+v", a)
		}
	}
}

func TestAvailableAgents_UnknownCaseDegrades(t *testing.T) {
	d := &AgentDirectory{Source: crm.NewDemoSource(), Logger: zerolog.Nop()}
	agents, err := d.Available(context.Background(), "99999999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agents) != 3 {
		t.Fatalf("expected 3 support agents, got %d", len(agents))
	}
}

type failingUsers struct {
	*crm.MemorySource
}

func (failingUsers) ListActiveUsers(context.Context, int, string) ([]models.User, error) {
	return nil, errors.New("users unavailable")
}

func TestAvailableAgents_UserLookupFailure(t *testing.T) {
	d := &AgentDirectory{Source: failingUsers{crm.NewDemoSource()}, Logger: zerolog.Nop()}

	agents, err := d.Available(context.Background(), "00001001")
	if err != nil || len(agents) != 1 {
		t.Fatalf("expected owner only, got %v, %v", agents, err)
	}
	if _, err := d.Available(context.Background(), ""); err == nil {
		t.Fatalf("expected error without any agents")
	}
}
