// Package testutil wires the domain services against an in-memory sqlite
// database for tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	auditdomain "github.com/smallbiznis/orderdesk/internal/audit/domain"
	auditrepo "github.com/smallbiznis/orderdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/orderdesk/internal/audit/service"
	bookingdomain "github.com/smallbiznis/orderdesk/internal/booking/domain"
	bookingrepo "github.com/smallbiznis/orderdesk/internal/booking/repository"
	bookingservice "github.com/smallbiznis/orderdesk/internal/booking/service"
	"github.com/smallbiznis/orderdesk/internal/clock"
	"github.com/smallbiznis/orderdesk/internal/config"
	inventorydomain "github.com/smallbiznis/orderdesk/internal/inventory/domain"
	inventoryrepo "github.com/smallbiznis/orderdesk/internal/inventory/repository"
	inventoryservice "github.com/smallbiznis/orderdesk/internal/inventory/service"
	invoicerepo "github.com/smallbiznis/orderdesk/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/orderdesk/internal/invoice/service"
	"github.com/smallbiznis/orderdesk/internal/lock"
	"github.com/smallbiznis/orderdesk/internal/migration"
	obsmetrics "github.com/smallbiznis/orderdesk/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/orderdesk/internal/order/domain"
	orderrepo "github.com/smallbiznis/orderdesk/internal/order/repository"
	orderservice "github.com/smallbiznis/orderdesk/internal/order/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// Epoch is the fake clock's starting time.
var Epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory database with the full schema.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migration.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type Options struct {
	Policy                   config.Policy
	OrderDeleteReleasesStock bool
	LockWait                 time.Duration
}

// Stack holds every domain service sharing one database.
type Stack struct {
	DB           *gorm.DB
	Node         *snowflake.Node
	Clock        *clock.FakeClock
	Policy       *config.PolicyHolder
	Locker       lock.Locker
	Registry     *prometheus.Registry
	OrderMetrics *obsmetrics.OrderMetrics

	Audit     auditdomain.Service
	Inventory *inventoryservice.Service
	Booking   bookingdomain.Service
	Invoices  *invoiceservice.Service
	Orders    orderdomain.Service
}

func NewStack(t testing.TB) *Stack {
	return NewStackWithOptions(t, Options{Policy: config.DefaultPolicy(), LockWait: 5 * time.Second})
}

func NewStackWithOptions(t testing.TB, opts Options) *Stack {
	t.Helper()

	db := NewDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(Epoch)
	policy := config.NewStaticPolicy(opts.Policy)
	locker := lock.NewMemoryLocker(opts.LockWait)
	registry := prometheus.NewRegistry()
	orderMetrics := obsmetrics.NewOrderMetrics(registry, obsmetrics.Config{ServiceName: "orderdesk", Environment: "test"})

	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: clk,
		Repo:  auditrepo.Provide(),
	})

	invoiceSvc := invoiceservice.New(invoiceservice.Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Repo:     invoicerepo.Provide(),
		AuditSvc: auditSvc,
		Policy:   policy,
	})

	itemRepo := inventoryrepo.Provide()
	bookingRepo := bookingrepo.Provide()
	inventorySvc := inventoryservice.New(inventoryservice.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      clk,
		Repo:       itemRepo,
		Bookings:   bookingRepo,
		Reconciler: invoiceSvc,
		AuditSvc:   auditSvc,
		Policy:     policy,
	})

	bookingSvc := bookingservice.New(bookingservice.Params{
		DB:    db,
		Log:   log,
		Repo:  bookingRepo,
		Items: itemRepo,
	})

	orderSvc := orderservice.New(orderservice.Params{
		DB:         db,
		Log:        log,
		Config:     config.Config{OrderDeleteReleasesStock: opts.OrderDeleteReleasesStock},
		GenID:      node,
		Clock:      clk,
		Policy:     policy,
		Repo:       orderrepo.Provide(),
		Ledger:     inventorySvc,
		Booking:    bookingSvc,
		Reconciler: invoiceSvc,
		Locker:     locker,
		AuditSvc:   auditSvc,
		Metrics:    orderMetrics,
	})

	return &Stack{
		DB:           db,
		Node:         node,
		Clock:        clk,
		Policy:       policy,
		Locker:       locker,
		Registry:     registry,
		OrderMetrics: orderMetrics,
		Audit:        auditSvc,
		Inventory:    inventorySvc,
		Booking:      bookingSvc,
		Invoices:     invoiceSvc,
		Orders:       orderSvc,
	}
}

func (s *Stack) MustCreateItem(t testing.TB, name string, quantity, unitPrice int64, consumable bool) inventorydomain.Item {
	t.Helper()
	item, err := s.Inventory.Create(context.Background(), inventorydomain.CreateItemRequest{
		Name:         name,
		Quantity:     quantity,
		UnitPrice:    unitPrice,
		IsConsumable: &consumable,
	})
	if err != nil {
		t.Fatalf("create item %q: %v", name, err)
	}
	s.Clock.Advance(time.Second)
	return item
}

// ItemQuantity reads the stored on-hand count.
func (s *Stack) ItemQuantity(t testing.TB, id snowflake.ID) int64 {
	t.Helper()
	item, err := s.Inventory.Get(context.Background(), id.String())
	if err != nil {
		t.Fatalf("get item %s: %v", id, err)
	}
	return item.Quantity
}

// OrderRequest builds a valid order request for eventDate.
func OrderRequest(eventDate string, lines ...orderdomain.LineRequest) orderdomain.OrderRequest {
	return orderdomain.OrderRequest{
		Title:        "Wedding reception",
		EventDate:    eventDate,
		Location:     "Main hall",
		CustomerName: "Dana Whitfield",
		PhoneNumber:  "+1 555 0100",
		Lines:        lines,
	}
}

func Line(item inventorydomain.Item, quantity int64) orderdomain.LineRequest {
	return orderdomain.LineRequest{ItemID: item.ID.String(), Quantity: quantity}
}
