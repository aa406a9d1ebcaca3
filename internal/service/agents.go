package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/c360-copilot/backend/internal/crm"
	"github.com/c360-copilot/backend/internal/models"
)

const maxSupportAgents = 3

type AgentDirectory struct {
	Source crm.Source
	Logger zerolog.Logger
}

// Available lists the case owner (when caseNumber resolves) followed by up to
// three other active users. An unresolvable case only drops the owner entry.
func (d *AgentDirectory) Available(ctx context.Context, caseNumber string) ([]models.AgentInfo, error) {
	var (
		agents  []models.AgentInfo
		ownerID string
	)
	if caseNumber = strings.TrimSpace(caseNumber); caseNumber != "" {
		c, err := d.Source.GetCaseByNumber(ctx, caseNumber)
		switch {
		case err != nil:
			d.Logger.Warn().Err(err).Str("case_number", caseNumber).Msg("case owner lookup failed")
		case c.Owner != nil && c.Owner.ID != "":
			ownerID = c.Owner.ID
			agents = append(agents, agentInfo(*c.Owner, "Case Owner"))
		}
	}

	users, err := d.Source.ListActiveUsers(ctx, maxSupportAgents, ownerID)
	if err != nil {
		if len(agents) > 0 {
			d.Logger.Warn().Err(err).Msg("active user lookup failed")
			return agents, nil
		}
		return nil, err
	}
	for _, u := range users {
		if u.ID == ownerID {
			continue
		}
		if len(agents) >= maxSupportAgents+1 {
			break
		}
		agents = append(agents, agentInfo(u, "Support Agent"))
	}
	if agents == nil {
		agents = []models.AgentInfo{}
	}
	return agents, nil
}

func agentInfo(u models.User, skill string) models.AgentInfo {
	return models.AgentInfo{
		AgentID:            u.ID,
		AgentName:          u.Name,
		Email:              u.Email,
		Skills:             []string{skill},
		CurrentWorkload:    0,
		AvailabilityStatus: "available",
	}
}
