package referral

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"vobee/cmd/internal/invite"
)

// CodeIssuer mints invite codes for reward fulfillment.
type CodeIssuer interface {
	Issue(ctx context.Context, batchID, issuedTo string) (invite.Invite, error)
}

// rewardBatchID tags codes minted as referral rewards in the ledger.
const rewardBatchID = "REFERRAL"

// QualityReport summarizes an inviter's referral standing.
type QualityReport struct {
	ReferredCount int      `json:"referred_count"`
	QualityScore  float64  `json:"quality_score"`
	Rewards       []Reward `json:"rewards"`
}

// ClaimResult is the outcome of a reward claim.
type ClaimResult struct {
	Claimed []Reward `json:"claimed"`
	Codes   []string `json:"codes"`
}

// Service implements referral tracking and reward fulfillment.
type Service struct {
	log        *slog.Logger
	store      Store
	windowDays int
	nowF       func() time.Time
}

// Option configures Service.
type Option func(*Service) error

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(f func() time.Time) Option {
	return func(s *Service) error {
		if f == nil {
			return ErrInvalidInput
		}
		s.nowF = f
		return nil
	}
}

// WithQualityWindow overrides the recency window in days.
func WithQualityWindow(days int) Option {
	return func(s *Service) error {
		if days <= 0 {
			return ErrInvalidInput
		}
		s.windowDays = days
		return nil
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) error {
		if log == nil {
			return ErrInvalidInput
		}
		s.log = log
		return nil
	}
}

// NewService constructs a referral Service.
func NewService(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, ErrInvalidInput
	}
	s := &Service{
		log:        slog.Default(),
		store:      store,
		windowDays: DefaultQualityWindowDays,
		nowF:       time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Track records a shared referral.
func (s *Service) Track(ctx context.Context, inviter, invited, code string) (Referral, error) {
	if s == nil || s.store == nil {
		return Referral{}, ErrInvalidInput
	}
	if err := ctx.Err(); err != nil {
		return Referral{}, err
	}

	inviter = normalizeEmail(inviter)
	invited = normalizeEmail(invited)
	if inviter == "" || invited == "" || inviter == invited {
		return Referral{}, ErrInvalidInput
	}

	r := NewReferral(inviter, invited, invite.NormalizeCode(code), s.nowF())
	if err := s.store.Insert(ctx, r); err != nil {
		return Referral{}, err
	}

	s.log.Info("referral.tracked", "id", r.ID, "inviter", inviter)
	return r, nil
}

// QualityFor computes the current report for an inviter.
func (s *Service) QualityFor(ctx context.Context, inviter string) (QualityReport, error) {
	if s == nil || s.store == nil {
		return QualityReport{}, ErrInvalidInput
	}
	inviter = normalizeEmail(inviter)
	if inviter == "" {
		return QualityReport{}, ErrInvalidInput
	}

	referrals, err := s.store.ListByInviter(ctx, inviter)
	if err != nil {
		return QualityReport{}, err
	}

	score := QualityScore(referrals, s.windowDays, s.nowF())
	return QualityReport{
		ReferredCount: len(referrals),
		QualityScore:  score,
		Rewards:       CalculateRewards(len(referrals), score),
	}, nil
}

// ClaimRewards fulfills all unlocked, unclaimed reward tiers. Invite-code
// tiers mint codes through the ledger under the REFERRAL batch; premium
// tiers are recorded for fulfillment out of band. Each tier pays out at
// most once per inviter.
func (s *Service) ClaimRewards(ctx context.Context, inviter string, issuer CodeIssuer) (ClaimResult, error) {
	if s == nil || s.store == nil || issuer == nil {
		return ClaimResult{}, ErrInvalidInput
	}
	inviter = normalizeEmail(inviter)
	if inviter == "" {
		return ClaimResult{}, ErrInvalidInput
	}

	report, err := s.QualityFor(ctx, inviter)
	if err != nil {
		return ClaimResult{}, err
	}

	now := s.nowF().UTC()
	var res ClaimResult
	for _, reward := range report.Rewards {
		if err := s.store.ClaimTier(ctx, inviter, reward.Tier, now); err != nil {
			if errors.Is(err, ErrAlreadyClaimed) {
				continue
			}
			return res, err
		}

		codes := 0
		switch reward.Type {
		case RewardInviteCodes, RewardQualityBonus:
			codes = reward.Amount
		}
		for i := 0; i < codes; i++ {
			inv, err := issuer.Issue(ctx, rewardBatchID, inviter)
			if err != nil {
				return res, err
			}
			res.Codes = append(res.Codes, inv.Code)
		}

		res.Claimed = append(res.Claimed, reward)
		s.log.Info("referral.reward.claimed", "inviter", inviter, "tier", reward.Tier, "codes", codes)
	}

	return res, nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
