package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func newRequest(method domain.PaymentMethod) domain.OrderRequest {
	return domain.OrderRequest{
		StoreID: "store-1",
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Empanada", Quantity: 6, SKU: "EMP-001"},
		},
		PaymentMethod: method,
		Fulfillment:   domain.FulfillmentDelivery,
		DeliveryAddress: &domain.DeliveryAddress{
			ContactName:  "Ana",
			ContactPhone: "555-1234",
			Street:       "Mitre",
			Number:       "42",
		},
		TotalAmount: 2500,
	}
}

func TestOrderBackend_CreateGet(t *testing.T) {
	backend := memory.NewOrderBackend()
	ctx := context.Background()

	order, err := backend.CreateOrder(ctx, newRequest(domain.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.ID == "" || order.OrderNumber != "000001" {
		t.Fatalf("unexpected identifiers: id=%q number=%q", order.ID, order.OrderNumber)
	}
	if order.Status != domain.OrderStatusCreated {
		t.Fatalf("expected CREATED for cash, got %s", order.Status)
	}
	if order.DeliveryShort == nil || order.DeliveryShort.Street != "Mitre" {
		t.Fatalf("expected delivery echo, got %+v", order.DeliveryShort)
	}

	stored, err := backend.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.TotalAmount != 2500 {
		t.Fatalf("expected total 2500, got %d", stored.TotalAmount)
	}
}

func TestOrderBackend_OnlinePaymentAwaitsPayment(t *testing.T) {
	backend := memory.NewOrderBackend()

	order, err := backend.CreateOrder(context.Background(), newRequest(domain.PaymentMethodMercadoPago))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.Status != domain.OrderStatusAwaitingPayment {
		t.Fatalf("expected AWAITING_PAYMENT, got %s", order.Status)
	}

	if err := backend.SetStatus(order.ID, domain.OrderStatusPaid); err != nil {
		t.Fatalf("set status: %v", err)
	}
	stored, _ := backend.GetOrder(context.Background(), order.ID)
	if stored.Status != domain.OrderStatusPaid {
		t.Fatalf("expected PAID, got %s", stored.Status)
	}
}

func TestOrderBackend_Errors(t *testing.T) {
	backend := memory.NewOrderBackend()

	if _, err := backend.GetOrder(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := backend.SetStatus("missing", domain.OrderStatusPaid); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := backend.SetStatus("missing", domain.OrderStatus("BOGUS")); err == nil {
		t.Fatal("expected error for unknown status")
	}

	backend.FailCreate(domain.ErrBackendUnavailable)
	if _, err := backend.CreateOrder(context.Background(), newRequest(domain.PaymentMethodCash)); !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if backend.Count() != 0 {
		t.Fatalf("failed create must not store order, got %d", backend.Count())
	}
}

func TestOrderBackend_ReturnsCopies(t *testing.T) {
	backend := memory.NewOrderBackend()
	order, err := backend.CreateOrder(context.Background(), newRequest(domain.PaymentMethodCash))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Items[0].Quantity = 99
	order.DeliveryShort.Street = "changed"

	stored, _ := backend.GetOrder(context.Background(), order.ID)
	if stored.Items[0].Quantity != 6 || stored.DeliveryShort.Street != "Mitre" {
		t.Fatalf("stored order mutated through returned copy: %+v", stored)
	}
}

func TestKVStore_SessionIsolation(t *testing.T) {
	factory := memory.NewKVStoreFactory()
	ctx := context.Background()

	a := factory.ForSession("a")
	b := factory.ForSession("b")

	if err := a.Set(ctx, "cart", []byte(`{"items":[]}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := b.Get(ctx, "cart"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound for other session, got %v", err)
	}

	got, err := a.Get(ctx, "cart")
	if err != nil || string(got) != `{"items":[]}` {
		t.Fatalf("unexpected value %q err=%v", got, err)
	}

	if err := a.Delete(ctx, "cart"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.Delete(ctx, "cart"); err != nil {
		t.Fatalf("deleting a missing key must not fail: %v", err)
	}
	if factory.Keys("a") != 0 {
		t.Fatalf("expected empty session, got %d keys", factory.Keys("a"))
	}
}

func TestPrintSinkAndCatalog(t *testing.T) {
	sink := memory.NewPrintSink()
	ctx := context.Background()

	if err := sink.Submit(ctx, domain.PrintJob{OrderID: "o1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	sink.Fail(errors.New("printer offline"))
	if err := sink.Submit(ctx, domain.PrintJob{OrderID: "o2"}); err == nil {
		t.Fatal("expected injected failure")
	}
	if jobs := sink.Jobs(); len(jobs) != 1 || jobs[0].OrderID != "o1" {
		t.Fatalf("unexpected jobs: %+v", jobs)
	}

	provider := memory.NewCatalogProvider(memory.DemoCatalog())
	cat, err := provider.LoadCatalog(ctx)
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	if len(cat.Products) == 0 || len(cat.Combos) == 0 || len(cat.Stores) == 0 {
		t.Fatalf("demo catalog is incomplete: %+v", cat)
	}
	cat.Combos[0].SelectionRules[0].UnitsRequired = 100

	again, _ := provider.LoadCatalog(ctx)
	if again.Combos[0].SelectionRules[0].UnitsRequired == 100 {
		t.Fatal("catalog provider leaked internal slices")
	}
	if provider.Loads() != 2 {
		t.Fatalf("expected 2 loads, got %d", provider.Loads())
	}
}
