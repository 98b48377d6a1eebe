package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"registrar/internal/events"
	"registrar/internal/ledger"
	"registrar/internal/registry/models"
	"registrar/internal/registry/store"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

// failingBank delegates to a real ledger but refuses transfers to one
// account, to exercise the rollback paths.
type failingBank struct {
	*ledger.InMemory
	failTo id.AccountID
}

func (b *failingBank) Transfer(ctx context.Context, from, to id.AccountID, amount int64) error {
	if to == b.failTo {
		return ledger.ErrInsufficientFunds
	}
	return b.InMemory.Transfer(ctx, from, to, amount)
}

// mapCache is an in-process OwnerCache for asserting cache interactions.
type mapCache struct {
	entries map[string]id.AccountID
	hits    int
	misses  int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]id.AccountID)}
}

func (c *mapCache) Get(ctx context.Context, name models.Name) (id.AccountID, bool) {
	owner, ok := c.entries[name.String()]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return owner, ok
}

func (c *mapCache) Put(ctx context.Context, name models.Name, owner id.AccountID) {
	c.entries[name.String()] = owner
}

type ServiceSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.InMemory
	bank     *ledger.InMemory
	sink     *events.InMemoryStore
	service  *Service
	treasury id.AccountID
	feeAdmin id.AccountID
	alice    id.AccountID
	bob      id.AccountID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.treasury = id.NewAccountID()
	s.feeAdmin = id.NewAccountID()
	s.alice = id.NewAccountID()
	s.bob = id.NewAccountID()

	regStore, err := store.NewInMemory(100)
	s.Require().NoError(err)
	s.store = regStore

	s.bank = ledger.NewInMemory()
	s.Require().NoError(s.bank.Deposit(s.ctx, s.alice, 1_000))
	s.Require().NoError(s.bank.Deposit(s.ctx, s.bob, 1_000))

	s.sink = events.NewInMemoryStore()

	svc, err := New(s.store, s.bank, s.treasury, s.feeAdmin,
		WithEventPublisher(events.NewPublisher(s.sink)),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) balance(account id.AccountID) int64 {
	balance, err := s.bank.Balance(s.ctx, account)
	s.Require().NoError(err)
	return balance
}

func (s *ServiceSuite) TestConstructorRejectsZeroIdentities() {
	_, err := New(s.store, s.bank, id.AccountID{}, s.feeAdmin)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = New(s.store, s.bank, s.treasury, id.AccountID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRegisterTopLevel() {
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(s.ctx, at)

	record, err := s.service.Register(ctx, "alice", 100, s.alice)
	s.Require().NoError(err)

	s.Equal("alice", record.Name.String())
	s.Equal(s.alice, record.Owner)
	s.Equal(1, record.Level)
	s.Equal(0, record.Position)
	s.Equal(at, record.RegisteredAt)

	s.Run("treasury receives the full payment", func() {
		s.Equal(int64(100), s.balance(s.treasury))
		s.Equal(int64(900), s.balance(s.alice))
	})

	s.Run("owner is resolvable afterwards", func() {
		owner, err := s.service.Owner(s.ctx, "alice")
		s.Require().NoError(err)
		s.Equal(s.alice, owner)
	})

	s.Run("registration event emitted", func() {
		emitted, err := s.sink.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(emitted, 1)
		s.Equal(events.TypeNameRegistered, emitted[0].Type)
		s.Equal("alice", emitted[0].Name)
		s.Equal(s.alice.String(), emitted[0].Owner)
	})
}

// The concrete scenario: fee 100, register "alice" from A, then "bob.alice"
// from B. A receives 20, the treasury 80.
func (s *ServiceSuite) TestRegisterSubdomainSplitsPayment() {
	_, err := s.service.Register(s.ctx, "alice", 100, s.alice)
	s.Require().NoError(err)

	record, err := s.service.Register(s.ctx, "bob.alice", 100, s.bob)
	s.Require().NoError(err)
	s.Equal(2, record.Level)
	s.Equal(1, record.Position)

	s.Equal(int64(100+80), s.balance(s.treasury))
	s.Equal(int64(900+20), s.balance(s.alice))
	s.Equal(int64(900), s.balance(s.bob))

	owner, err := s.service.Owner(s.ctx, "bob.alice")
	s.Require().NoError(err)
	s.Equal(s.bob, owner)
}

func (s *ServiceSuite) TestRegisterDuplicateFails() {
	_, err := s.service.Register(s.ctx, "alice", 100, s.alice)
	s.Require().NoError(err)

	// Second attempt fails regardless of payment or caller.
	_, err = s.service.Register(s.ctx, "alice", 500, s.bob)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// Case-variant of the same logical name collides too.
	_, err = s.service.Register(s.ctx, "ALICE", 100, s.bob)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestRegisterSubdomainWithoutParentFails() {
	_, err := s.service.Register(s.ctx, "bob.alice", 100, s.bob)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// No funds moved, nothing registered.
	s.Equal(int64(0), s.balance(s.treasury))
	count, err := s.store.Count(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, count)
}

func (s *ServiceSuite) TestPaymentPolicy() {
	s.Run("underpayment refused", func() {
		_, err := s.service.Register(s.ctx, "alice", 99, s.alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
		s.Equal(int64(1_000), s.balance(s.alice))
	})

	s.Run("overpayment accepted and forwarded whole", func() {
		_, err := s.service.Register(s.ctx, "alice", 150, s.alice)
		s.Require().NoError(err)
		s.Equal(int64(150), s.balance(s.treasury))

		_, err = s.service.Register(s.ctx, "bob.alice", 150, s.bob)
		s.Require().NoError(err)
		// 20% of the full 150, not of the configured fee.
		s.Equal(int64(850+30), s.balance(s.alice))
		s.Equal(int64(150+120), s.balance(s.treasury))
	})
}

func (s *ServiceSuite) TestRegisterInvalidNameFails() {
	for _, raw := range []string{"-abc", "ab--c", "", "a..b", "a_b"} {
		_, err := s.service.Register(s.ctx, raw, 100, s.alice)
		s.Require().Error(err, "name %q", raw)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation), "name %q", raw)
	}
}

func (s *ServiceSuite) TestRegisterZeroCallerFails() {
	_, err := s.service.Register(s.ctx, "alice", 100, id.AccountID{})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestTransferFailureLeavesNoTrace() {
	broke := id.NewAccountID() // no balance deposited

	_, err := s.service.Register(s.ctx, "alice", 100, broke)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentFailed))

	s.Run("registry untouched", func() {
		count, err := s.store.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(0, count)

		exists, err := s.store.Exists(s.ctx, mustName(s.T(), "alice"))
		s.Require().NoError(err)
		s.False(exists)
	})

	s.Run("no event emitted", func() {
		emitted, err := s.sink.List(s.ctx)
		s.Require().NoError(err)
		s.Empty(emitted)
	})

	s.Run("retry succeeds after funding", func() {
		s.Require().NoError(s.bank.Deposit(s.ctx, broke, 100))
		_, err := s.service.Register(s.ctx, "alice", 100, broke)
		s.Require().NoError(err)
	})
}

// When the treasury leg fails after the parent share already moved, the
// parent share is refunded and the reservation released.
func (s *ServiceSuite) TestTreasuryFailureRefundsParentShare() {
	_, err := s.service.Register(s.ctx, "alice", 100, s.alice)
	s.Require().NoError(err)
	aliceAfterSetup := s.balance(s.alice)
	treasuryAfterSetup := s.balance(s.treasury)

	bank := &failingBank{InMemory: s.bank, failTo: s.treasury}
	svc, err := New(s.store, bank, s.treasury, s.feeAdmin)
	s.Require().NoError(err)

	_, err = svc.Register(s.ctx, "bob.alice", 100, s.bob)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodePaymentFailed))

	s.Run("balances fully restored", func() {
		s.Equal(aliceAfterSetup, s.balance(s.alice))
		s.Equal(treasuryAfterSetup, s.balance(s.treasury))
		s.Equal(int64(1_000), s.balance(s.bob))
	})

	s.Run("name can be registered once the bank recovers", func() {
		_, err := s.service.Register(s.ctx, "bob.alice", 100, s.bob)
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestUpdateFee() {
	s.Run("non-admin refused", func() {
		err := s.service.UpdateFee(s.ctx, 200, s.alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("zero caller refused", func() {
		err := s.service.UpdateFee(s.ctx, 200, id.AccountID{})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("zero fee out of range", func() {
		err := s.service.UpdateFee(s.ctx, 0, s.feeAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOutOfRange))
	})

	s.Run("fee above MaxFee out of range", func() {
		err := s.service.UpdateFee(s.ctx, models.MaxFee+1, s.feeAdmin)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOutOfRange))
	})

	s.Run("admin update applies and notifies", func() {
		s.Require().NoError(s.service.UpdateFee(s.ctx, 250, s.feeAdmin))

		fee, err := s.service.CurrentFee(s.ctx)
		s.Require().NoError(err)
		s.Equal(int64(250), fee)

		emitted, err := s.sink.List(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(emitted, 1)
		s.Equal(events.TypeFeeUpdated, emitted[0].Type)
		s.Equal(int64(250), emitted[0].Fee)

		// The new fee gates the next registration.
		_, err = s.service.Register(s.ctx, "alice", 100, s.alice)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *ServiceSuite) TestListNames() {
	for _, raw := range []string{"alpha", "beta", "gamma"} {
		_, err := s.service.Register(s.ctx, raw, 100, s.alice)
		s.Require().NoError(err)
	}

	s.Run("returns the registration-order slice", func() {
		names, err := s.service.ListNames(s.ctx, 0, 2)
		s.Require().NoError(err)
		s.Require().Len(names, 2)
		s.Equal("alpha", names[0].String())
		s.Equal("beta", names[1].String())
	})

	s.Run("start >= end", func() {
		_, err := s.service.ListNames(s.ctx, 2, 2)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("end beyond count", func() {
		_, err := s.service.ListNames(s.ctx, 0, 4)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeOutOfRange))
	})
}

func (s *ServiceSuite) TestOwnerLookup() {
	s.Run("unregistered name", func() {
		_, err := s.service.Owner(s.ctx, "nobody")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("malformed name", func() {
		_, err := s.service.Owner(s.ctx, "-bad-")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("mixed-case lookup resolves", func() {
		_, err := s.service.Register(s.ctx, "alice", 100, s.alice)
		s.Require().NoError(err)

		owner, err := s.service.Owner(s.ctx, "Alice")
		s.Require().NoError(err)
		s.Equal(s.alice, owner)
	})
}

func (s *ServiceSuite) TestOwnerCachePopulation() {
	c := newMapCache()
	svc, err := New(s.store, s.bank, s.treasury, s.feeAdmin, WithOwnerCache(c))
	s.Require().NoError(err)

	_, err = svc.Register(s.ctx, "alice", 100, s.alice)
	s.Require().NoError(err)

	// Register already primed the cache.
	owner, err := svc.Owner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(s.alice, owner)
	s.Equal(1, c.hits)

	// A cold entry falls through and is then cached.
	c.entries = map[string]id.AccountID{}
	_, err = svc.Owner(s.ctx, "alice")
	s.Require().NoError(err)
	s.Equal(1, c.misses)
	s.Contains(c.entries, "alice")
}

func mustName(t *testing.T, raw string) models.Name {
	t.Helper()
	name, err := models.ParseName(raw)
	if err != nil {
		t.Fatalf("parse name %q: %v", raw, err)
	}
	return name
}
