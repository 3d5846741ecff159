package chain

import (
	"context"
	"math/big"

	"github.com/blues/ideamarket/internal/config"
)

// TeamParams 创建团队的参数
type TeamParams struct {
	RequiredMembers uint64
	RequiredStake   *big.Int // USDC最小单位
	TeamName        string
	Description     string
	ProjectName     string
	Roles           []string
	Tags            []string
}

// CreateTeam 创建团队
func (m *Manager) CreateTeam(ctx context.Context, p TeamParams) (*TxResult, error) {
	stake := p.RequiredStake
	if stake == nil {
		stake = new(big.Int)
	}
	res, err := m.transact(ctx, config.ContractTeamCore, "createTeam",
		new(big.Int).SetUint64(p.RequiredMembers), stake,
		p.TeamName, p.Description, p.ProjectName, nonNil(p.Roles), nonNil(p.Tags))
	return res, wrap("create team", err)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
