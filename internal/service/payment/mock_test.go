package payment

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestMockService(t *testing.T) {
	mock := NewMockService()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}
	ctx := context.Background()

	pref, err := mock.CreatePreference(ctx, "o-1")
	if err != nil {
		t.Fatalf("unexpected preference error: %v", err)
	}
	if !strings.HasPrefix(pref.InitPoint, DefaultInitPointBase) || !strings.HasSuffix(pref.InitPoint, "pref_id=o-1") {
		t.Fatalf("unexpected init point: %s", pref.InitPoint)
	}

	if _, err := mock.CreatePreference(ctx, ""); !errors.Is(err, domain.ErrOrderIDRequired) {
		t.Fatalf("expected ErrOrderIDRequired, got %v", err)
	}

	mock.SetErr(errors.New("provider down"))
	if _, err := mock.CreatePreference(ctx, "o-2"); err == nil {
		t.Fatal("expected preference error")
	}

	if mock.Calls != 3 || len(mock.OrderIDs) != 3 {
		t.Fatalf("unexpected call counters: calls=%d ids=%v", mock.Calls, mock.OrderIDs)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := mock.CreatePreference(canceled, "o-3"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
