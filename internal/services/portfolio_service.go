package services

import (
	"gorm.io/gorm"

	"carbonflow/internal/carbon"
	apperrors "carbonflow/internal/errors"
	"carbonflow/internal/logger"
	"carbonflow/internal/models"
)

// portfolioService computes cumulative portfolio sizes and keeps proposal
// share percentages consistent with them.
type portfolioService struct {
	db *gorm.DB
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db}
}

// CalculateClientPortfolio aggregates a client's non-archived proposals.
// A read failure degrades to a draft-only portfolio instead of propagating:
// blocking proposal creation on a transient read error is worse than
// temporarily under-counting the portfolio.
func (s *portfolioService) CalculateClientPortfolio(clientID string, opts PortfolioOptions) PortfolioData {
	return s.aggregate("client_id", clientID, opts)
}

// CalculateAgentPortfolio aggregates the proposals an agent has authored.
func (s *portfolioService) CalculateAgentPortfolio(agentID string, opts PortfolioOptions) PortfolioData {
	return s.aggregate("agent_id", agentID, opts)
}

func (s *portfolioService) aggregate(column, id string, opts PortfolioOptions) PortfolioData {
	type row struct {
		Total float64
		Count int64
	}
	var r row

	query := s.db.Model(&models.Proposal{}).
		Where(column+" = ? AND archived_at IS NULL", id)
	if opts.ExcludeProposalID != "" {
		query = query.Where("id <> ?", opts.ExcludeProposalID)
	}

	err := query.
		Select("COALESCE(SUM(system_size_kwp), 0) AS total, COUNT(*) AS count").
		Scan(&r).Error
	if err != nil {
		logger.Get().Warnw("portfolio aggregation failed, falling back to draft only",
			"error", err,
			column, id,
		)
		data := PortfolioData{TotalKWp: carbon.NormalizeToKWp(opts.DraftKWp, carbon.UnitKWp)}
		if data.TotalKWp > 0 {
			data.ProjectCount = 1
		}
		return data
	}

	data := PortfolioData{TotalKWp: r.Total, ProjectCount: int(r.Count)}
	if draft := carbon.NormalizeToKWp(opts.DraftKWp, carbon.UnitKWp); draft > 0 {
		data.TotalKWp += draft
		data.ProjectCount++
	}
	return data
}

// RepairClientShares recomputes and writes back the share percentages of all
// non-archived proposals belonging to a client, against the current
// aggregate. Idempotent; safe to re-run. Individual write failures are
// counted and do not stop the batch.
func (s *portfolioService) RepairClientShares(clientID string) (*RepairReport, error) {
	var proposals []models.Proposal
	if err := s.db.Where("client_id = ? AND archived_at IS NULL", clientID).Find(&proposals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var total float64
	for i := range proposals {
		total += proposals[i].SystemSizeKWp
	}

	expectedClient := carbon.ClientSharePercent(total)
	expectedAgent := carbon.AgentCommissionPercent(total)

	report := &RepairReport{}
	for i := range proposals {
		p := &proposals[i]
		report.Checked++

		if p.ClientSharePct == expectedClient && p.AgentCommissionPct == expectedAgent {
			continue
		}

		err := s.db.Model(p).Updates(map[string]interface{}{
			"client_share_pct":     expectedClient,
			"agent_commission_pct": expectedAgent,
		}).Error
		if err != nil {
			logger.Get().Errorw("failed to repair proposal shares",
				"error", err,
				"proposal_id", p.ID,
				"client_id", clientID,
			)
			report.Errors++
			continue
		}
		report.Fixed++
	}

	return report, nil
}

// RepairAllClientShares runs the share repair for every client that has at
// least one proposal. Wired to the nightly maintenance job.
func (s *portfolioService) RepairAllClientShares() (*RepairReport, error) {
	var clientIDs []string
	if err := s.db.Model(&models.Proposal{}).
		Where("archived_at IS NULL").
		Distinct("client_id").
		Pluck("client_id", &clientIDs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	total := &RepairReport{}
	for _, clientID := range clientIDs {
		report, err := s.RepairClientShares(clientID)
		if err != nil {
			logger.Get().Errorw("client share repair failed", "error", err, "client_id", clientID)
			total.Errors++
			continue
		}
		total.Checked += report.Checked
		total.Fixed += report.Fixed
		total.Errors += report.Errors
	}

	return total, nil
}
