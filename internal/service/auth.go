package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository"
)

const (
	defaultLoginAttemptsPerMinute = 10
	limiterSweepThreshold         = 1024
)

var (
	ErrWrongPassword     = errors.New("wrong password")
	ErrTooManyLoginTries = errors.New("too many login attempts")
)

type AuthRepository interface {
	CreateAssociation(ctx context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error)
	FindByEmail(ctx context.Context, email string) (domain.Member, error)
}

type AuthService struct {
	repo AuthRepository

	attemptsPerMinute int
	now               func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	sweepAt  int
}

func NewAuthService(repo AuthRepository, attemptsPerMinute int) *AuthService {
	if attemptsPerMinute <= 0 {
		attemptsPerMinute = defaultLoginAttemptsPerMinute
	}

	return &AuthService{
		repo:              repo,
		attemptsPerMinute: attemptsPerMinute,
		now:               time.Now,
		limiters:          make(map[string]*rate.Limiter),
		sweepAt:           limiterSweepThreshold,
	}
}

// Register creates an association together with the account that manages it.
func (s *AuthService) Register(ctx context.Context, association domain.Association, owner domain.Member) (domain.Association, domain.Member, error) {
	hash, err := hashPassword(owner.Password)
	if err != nil {
		return domain.Association{}, domain.Member{}, err
	}

	owner.Email = normalizeEmail(owner.Email)
	owner.Password = hash
	owner.Role = domain.RoleAssociation
	owner.Permissions = []string{domain.PermissionManageBar}

	createdAssociation, createdOwner, err := s.repo.CreateAssociation(ctx, association, owner)
	if err != nil {
		if errors.Is(err, repository.ErrMemberEmailExists) {
			return domain.Association{}, domain.Member{}, ErrEmailExists
		}
		return domain.Association{}, domain.Member{}, fmt.Errorf("s.repo.CreateAssociation -> %w", err)
	}

	return createdAssociation, createdOwner, nil
}

// Login checks the credentials of a member. Attempts are throttled per email.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.Member, error) {
	email = normalizeEmail(email)
	now := s.now()
	if !s.limiter(email, now).AllowN(now, 1) {
		return domain.Member{}, ErrTooManyLoginTries
	}

	member, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrMemberNotFound) {
			return domain.Member{}, ErrUnknownMember
		}

		return domain.Member{}, fmt.Errorf("s.repo.FindByEmail -> %w", err)
	}

	if err = bcrypt.CompareHashAndPassword([]byte(member.Password), []byte(password)); err != nil {
		return domain.Member{}, ErrWrongPassword
	}

	return member, nil
}

func (s *AuthService) limiter(email string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[email]
	if !ok {
		if len(s.limiters) >= s.sweepAt {
			s.sweepLocked(now)
		}
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(s.attemptsPerMinute)), s.attemptsPerMinute)
		s.limiters[email] = l
	}

	return l
}

// sweepLocked forgets limiters that have refilled completely, since a fresh
// limiter would behave the same. The next sweep waits until the map doubles.
func (s *AuthService) sweepLocked(now time.Time) {
	for email, l := range s.limiters {
		if l.TokensAt(now) >= float64(l.Burst()) {
			delete(s.limiters, email)
		}
	}

	s.sweepAt = max(limiterSweepThreshold, 2*len(s.limiters))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
