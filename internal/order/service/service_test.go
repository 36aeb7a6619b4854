package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	authmodels "luwei/internal/auth/models"
	accountstore "luwei/internal/auth/store/account"
	catalogmodels "luwei/internal/catalog/models"
	catalogstore "luwei/internal/catalog/store"
	"luwei/internal/notification"
	"luwei/internal/order/models"
	"luwei/internal/order/service/mocks"
	orderstore "luwei/internal/order/store"
	id "luwei/pkg/domain"
	dErrors "luwei/pkg/domain-errors"
	"luwei/pkg/platform/audit"
	"luwei/pkg/platform/sentinel"
	"luwei/pkg/requestcontext"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type ServiceSuite struct {
	suite.Suite
	ctrl         *gomock.Controller
	mockStore    *mocks.MockStore
	mockCatalog  *mocks.MockProductCatalog
	mockAccounts *mocks.MockAccountLookup
	mockNotifier *mocks.MockNotifier
	mockAudit    *mocks.MockAuditPublisher
	service      *Service
	account      *authmodels.Account
	now          time.Time
	ctx          context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockStore(s.ctrl)
	s.mockCatalog = mocks.NewMockProductCatalog(s.ctrl)
	s.mockAccounts = mocks.NewMockAccountLookup(s.ctrl)
	s.mockNotifier = mocks.NewMockNotifier(s.ctrl)
	s.mockAudit = mocks.NewMockAuditPublisher(s.ctrl)

	s.now = time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	a, err := authmodels.NewAccount(id.NewAccountID(), "a@x.com", "阿明", s.now.Add(-time.Hour))
	s.Require().NoError(err)
	s.account = a

	s.service = New(s.mockStore, s.mockCatalog, s.mockAccounts, s.mockNotifier,
		WithLogger(discard),
		WithAuditPublisher(s.mockAudit),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) passThroughTx() {
	s.mockStore.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
}

func product(pid string, price int64, available bool) *catalogmodels.Product {
	return &catalogmodels.Product{
		ID: id.ProductID(pid), Name: pid + " name", Price: decimal.NewFromInt(price), Image: "/" + pid + ".jpg", IsAvailable: available,
	}
}

func (s *ServiceSuite) assertCode(err error, code dErrors.Code) {
	s.Require().Error(err)
	s.Truef(dErrors.HasCode(err, code), "expected %s, got %v", code, err)
}

func (s *ServiceSuite) TestCheckout() {
	s.Run("prices the cart and writes one order", func() {
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(s.account, nil)
		s.mockCatalog.EXPECT().FindByIDs(gomock.Any(), []id.ProductID{"wing6", "tofu"}).
			Return(map[id.ProductID]*catalogmodels.Product{
				"wing6": product("wing6", 100, true),
				"tofu":  product("tofu", 25, true),
			}, nil)
		s.passThroughTx()

		var created *models.Order
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, o *models.Order) error {
				created = o
				return nil
			})
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal(audit.EventOrderCreated, e.Type)
				s.Equal(s.account.ID, e.AccountID)
				return nil
			})
		s.mockNotifier.EXPECT().OrderConfirmed(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, c notification.OrderConfirmation) {
				s.Equal("a@x.com", c.To)
				s.Len(c.Lines, 3)
				s.Equal("wing6 name", c.Lines[0].Name)
			})

		res, err := s.service.Checkout(s.ctx, s.account.ID, []CheckoutItem{
			{ProductID: "wing6", Quantity: 2},
			{ProductID: "tofu", Quantity: 1},
			{ProductID: "wing6", Quantity: 1},
		})
		s.Require().NoError(err)
		s.True(decimal.NewFromInt(325).Equal(res.TotalAmount), res.TotalAmount.String())
		s.Equal(models.StatusPending, res.Status)

		s.Require().NotNil(created)
		s.Equal(res.OrderID, created.ID)
		s.Len(created.Items, 3, "one line item per cart line")
		s.Equal(s.now, created.CreatedAt)
	})

	s.Run("empty cart fails before any lookup", func() {
		_, err := s.service.Checkout(s.ctx, s.account.ID, nil)
		s.assertCode(err, dErrors.CodeEmptyCart)
	})

	s.Run("bad lines are validation errors", func() {
		cases := map[string][]CheckoutItem{
			"zero quantity":     {{ProductID: "wing6", Quantity: 0}},
			"negative quantity": {{ProductID: "wing6", Quantity: -2}},
			"quantity over cap": {{ProductID: "wing6", Quantity: models.MaxLineQuantity + 1}},
			"absurd quantity":   {{ProductID: "wing6", Quantity: 2_000_000_000}},
			"blank product":     {{ProductID: "  ", Quantity: 1}},
			"too many lines":    make([]CheckoutItem, MaxCartLines+1),
		}
		for name, items := range cases {
			s.Run(name, func() {
				_, err := s.service.Checkout(s.ctx, s.account.ID, items)
				s.assertCode(err, dErrors.CodeValidation)
			})
		}
	})

	s.Run("missing account", func() {
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Checkout(s.ctx, s.account.ID, []CheckoutItem{{ProductID: "wing6", Quantity: 1}})
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("unknown products are named", func() {
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(s.account, nil)
		s.mockCatalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).
			Return(map[id.ProductID]*catalogmodels.Product{"wing6": product("wing6", 100, false)}, nil)

		_, err := s.service.Checkout(s.ctx, s.account.ID, []CheckoutItem{
			{ProductID: "wing6", Quantity: 1},
			{ProductID: "ghost", Quantity: 1},
			{ProductID: "alien", Quantity: 1},
		})
		s.assertCode(err, dErrors.CodeUnknownProduct)
		s.Contains(err.Error(), "alien, ghost")
	})

	s.Run("unavailable products are named and nothing is written", func() {
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(s.account, nil)
		s.mockCatalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).
			Return(map[id.ProductID]*catalogmodels.Product{
				"wing6":         product("wing6", 100, true),
				"sold-out-item": product("sold-out-item", 40, false),
			}, nil)

		_, err := s.service.Checkout(s.ctx, s.account.ID, []CheckoutItem{
			{ProductID: "wing6", Quantity: 1},
			{ProductID: "sold-out-item", Quantity: 1},
		})
		s.assertCode(err, dErrors.CodeProductUnavailable)
		s.Contains(err.Error(), "sold-out-item")
	})

	s.Run("store failure is internal and nothing is sent", func() {
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(s.account, nil)
		s.mockCatalog.EXPECT().FindByIDs(gomock.Any(), gomock.Any()).
			Return(map[id.ProductID]*catalogmodels.Product{"wing6": product("wing6", 100, true)}, nil)
		s.mockStore.EXPECT().RunInTx(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))

		_, err := s.service.Checkout(s.ctx, s.account.ID, []CheckoutItem{{ProductID: "wing6", Quantity: 1}})
		s.assertCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestTransition() {
	pending := func() *models.Order {
		return &models.Order{
			ID: id.NewOrderID(), AccountID: s.account.ID, Status: models.StatusPending,
			TotalAmount: decimal.NewFromInt(200), CreatedAt: s.now.Add(-time.Hour),
		}
	}

	s.Run("pending to paid", func() {
		o := pending()
		s.passThroughTx()
		s.mockStore.EXPECT().FindForUpdate(gomock.Any(), o.ID).Return(o, nil)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), o.ID, models.StatusPaid, s.now).Return(nil)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(s.account, nil)
		s.mockNotifier.EXPECT().OrderStatusChanged(gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, c notification.StatusChange) {
				s.Equal("pending", c.From)
				s.Equal("paid", c.Status)
				s.True(decimal.NewFromInt(200).Equal(c.Total))
			})

		got, err := s.service.Transition(s.ctx, o.ID, "paid")
		s.Require().NoError(err)
		s.Equal(models.StatusPaid, got.Status)
		s.Equal(s.now, got.UpdatedAt)
	})

	s.Run("undefined edges are invalid_state", func() {
		for _, from := range []models.Status{models.StatusCompleted, models.StatusCancelled, models.StatusPaid} {
			o := pending()
			o.Status = from
			s.passThroughTx()
			s.mockStore.EXPECT().FindForUpdate(gomock.Any(), o.ID).Return(o, nil)

			_, err := s.service.Transition(s.ctx, o.ID, "paid")
			s.assertCode(err, dErrors.CodeInvalidState)
		}
	})

	s.Run("pending is never a target", func() {
		_, err := s.service.Transition(s.ctx, id.NewOrderID(), "pending")
		s.assertCode(err, dErrors.CodeValidation)
	})

	s.Run("unknown status", func() {
		_, err := s.service.Transition(s.ctx, id.NewOrderID(), "shipped")
		s.assertCode(err, dErrors.CodeValidation)
	})

	s.Run("missing order", func() {
		s.passThroughTx()
		s.mockStore.EXPECT().FindForUpdate(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Transition(s.ctx, id.NewOrderID(), "completed")
		s.assertCode(err, dErrors.CodeNotFound)
	})

	s.Run("owner lookup failure keeps the transition", func() {
		o := pending()
		s.passThroughTx()
		s.mockStore.EXPECT().FindForUpdate(gomock.Any(), o.ID).Return(o, nil)
		s.mockStore.EXPECT().UpdateStatus(gomock.Any(), o.ID, models.StatusCancelled, s.now).Return(nil)
		s.mockAudit.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down"))
		s.mockAccounts.EXPECT().FindByID(gomock.Any(), s.account.ID).Return(nil, errors.New("db down"))

		got, err := s.service.Transition(s.ctx, o.ID, "cancelled")
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, got.Status)
	})
}

func (s *ServiceSuite) TestListing() {
	s.Run("pages are clamped", func() {
		s.mockStore.EXPECT().ListByAccount(gomock.Any(), s.account.ID, models.Page{Limit: models.MaxPageLimit}).Return(nil, nil)
		_, err := s.service.ListForAccount(s.ctx, s.account.ID, models.Page{Limit: 5000})
		s.NoError(err)
	})

	s.Run("anonymous caller", func() {
		_, err := s.service.ListForAccount(s.ctx, id.AccountID{}, models.Page{})
		s.assertCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("store failure", func() {
		s.mockStore.EXPECT().ListAll(gomock.Any(), gomock.Any()).Return(nil, errors.New("boom"))
		_, err := s.service.ListAll(s.ctx, models.Page{})
		s.assertCode(err, dErrors.CodeInternal)
	})
}

type recordingNotifier struct {
	mu        sync.Mutex
	confirmed []notification.OrderConfirmation
	changed   []notification.StatusChange
}

func (r *recordingNotifier) OrderConfirmed(_ context.Context, c notification.OrderConfirmation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmed = append(r.confirmed, c)
}

func (r *recordingNotifier) OrderStatusChanged(_ context.Context, c notification.StatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, c)
}

// TestOrderScenario runs checkout and transitions end to end over the in-memory stores.
func TestOrderScenario(t *testing.T) {
	s := new(scenarioSuite)
	suite.Run(t, s)
}

type scenarioSuite struct {
	suite.Suite
	accounts *accountstore.InMemoryStore
	catalog  *catalogstore.InMemoryStore
	orders   *orderstore.InMemoryStore
	notifier *recordingNotifier
	service  *Service
	customer *authmodels.Account
	ctx      context.Context
}

func (s *scenarioSuite) SetupTest() {
	now := time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)

	s.accounts = accountstore.NewInMemory()
	customer, err := authmodels.NewAccount(id.NewAccountID(), "a@x.com", "", now)
	s.Require().NoError(err)
	s.Require().NoError(s.accounts.Create(s.ctx, customer))
	s.customer = customer

	s.catalog = catalogstore.NewInMemory(product("wing6", 100, true), product("sold-out-item", 40, false))
	s.orders = orderstore.NewInMemory(orderstore.WithAccounts(s.accounts), orderstore.WithProducts(s.catalog))
	s.notifier = &recordingNotifier{}
	s.service = New(s.orders, s.catalog, s.accounts, s.notifier, WithLogger(discard))
}

func (s *scenarioSuite) TestCheckoutThenPaid() {
	res, err := s.service.Checkout(s.ctx, s.customer.ID, []CheckoutItem{{ProductID: "wing6", Quantity: 2}})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(200).Equal(res.TotalAmount))
	s.Equal(models.StatusPending, res.Status)

	mine, err := s.service.ListForAccount(s.ctx, s.customer.ID, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Len(mine[0].Items, 1)

	paid, err := s.service.Transition(s.ctx, res.OrderID, "paid")
	s.Require().NoError(err)
	s.Equal(models.StatusPaid, paid.Status)
	s.True(decimal.NewFromInt(200).Equal(paid.TotalAmount))

	s.Len(s.notifier.confirmed, 1)
	s.Require().Len(s.notifier.changed, 1)
	s.Equal("paid", s.notifier.changed[0].Status)

	_, err = s.service.Transition(s.ctx, res.OrderID, "pending")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *scenarioSuite) TestUnavailableLeavesNoOrder() {
	_, err := s.service.Checkout(s.ctx, s.customer.ID, []CheckoutItem{{ProductID: "sold-out-item", Quantity: 1}})
	s.True(dErrors.HasCode(err, dErrors.CodeProductUnavailable))
	s.Contains(err.Error(), "sold-out-item")
	s.Equal(0, s.orders.Count())
	s.Empty(s.notifier.confirmed)
}

func (s *scenarioSuite) TestOversizedQuantityIsRejectedBeforeWriting() {
	_, err := s.service.Checkout(s.ctx, s.customer.ID, []CheckoutItem{{ProductID: "wing6", Quantity: 2_000_000_000}})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Equal(0, s.orders.Count())
	s.Empty(s.notifier.confirmed)

	res, err := s.service.Checkout(s.ctx, s.customer.ID, []CheckoutItem{{ProductID: "wing6", Quantity: models.MaxLineQuantity}})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(99900).Equal(res.TotalAmount))
}

func (s *scenarioSuite) TestPriceChangeKeepsHistoricalPrice() {
	res, err := s.service.Checkout(s.ctx, s.customer.ID, []CheckoutItem{{ProductID: "wing6", Quantity: 1}})
	s.Require().NoError(err)

	s.Require().NoError(s.catalog.Upsert(s.ctx, []*catalogmodels.Product{product("wing6", 150, true)}))

	all, err := s.service.ListAll(s.ctx, models.Page{})
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal(res.OrderID, all[0].ID)
	s.True(decimal.NewFromInt(100).Equal(all[0].Items[0].UnitPrice))
	s.True(decimal.NewFromInt(100).Equal(all[0].TotalAmount))
	s.Equal("a@x.com", all[0].Owner.Email)
}
