package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"kisanpos/backend/internal/audit"
	"kisanpos/backend/internal/cache"
	"kisanpos/backend/internal/config"
	"kisanpos/backend/internal/domain"
	"kisanpos/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo      store.Repository
	sink      *audit.Sink
	customers cache.CustomerCache
	log       *logrus.Logger
	validate  *validator.Validate
	stockMode string
	cacheTTL  time.Duration
	now       func() time.Time

	seqMu     sync.Mutex
	seqSeeded bool
	billSeq   BillSequence
}

func New(repo store.Repository, sink *audit.Sink, customers cache.CustomerCache, logger *logrus.Logger, stockMode string, cacheTTL time.Duration) *Service {
	if customers == nil {
		customers = cache.NoopCustomerCache{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if stockMode != config.PurchaseStockLegacy {
		stockMode = config.PurchaseStockSymmetric
	}
	if cacheTTL < 1 {
		cacheTTL = 5 * time.Minute
	}

	return &Service{
		repo:      repo,
		sink:      sink,
		customers: customers,
		log:       logger,
		validate:  validator.New(),
		stockMode: stockMode,
		cacheTTL:  cacheTTL,
		now:       time.Now,
	}
}

func entryBy(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return "system"
	}
	return actor.Username
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return fmt.Errorf("admin role required")
	}
	return nil
}

// Authenticate verifies a staff credential against the user table.
func (s *Service) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.UserAccount, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, store.ErrInvalidRecord
	}

	user, err := s.repo.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, store.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, store.ErrNotFound
	}
	return user, nil
}

// CreateUser registers a staff account. Admin only; the password is
// stored bcrypt-hashed.
func (s *Service) CreateUser(ctx context.Context, username string, password string, role string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return store.ErrInvalidRecord
	}
	if role != domain.RoleAdmin && role != domain.RoleStaff {
		return store.ErrInvalidRecord
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Role:      role,
		Active:    true,
		CreatedAt: s.now(),
	})
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// paymentBalances reports whether cash+upi covers the total within a
// one-paisa tolerance.
func paymentBalances(cash, upi, total float64) bool {
	paid := decimal.NewFromFloat(cash).Add(decimal.NewFromFloat(upi))
	diff := paid.Sub(decimal.NewFromFloat(total)).Abs()
	return diff.LessThanOrEqual(decimal.NewFromFloat(0.01))
}

func (s *Service) warnAudit(op string, err error) {
	if err != nil {
		s.log.WithError(err).Warnf("audit write failed: %s", op)
	}
}
