package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type fakeScanner struct {
	scanChainFn func(ctx context.Context, chainID uint64) error
	scanRangeFn func(ctx context.Context, chainID, from, to uint64) error
}

func (f *fakeScanner) ScanChain(ctx context.Context, chainID uint64) error {
	if f.scanChainFn == nil {
		return nil
	}
	return f.scanChainFn(ctx, chainID)
}

func (f *fakeScanner) ScanRange(ctx context.Context, chainID, from, to uint64) error {
	if f.scanRangeFn == nil {
		return nil
	}
	return f.scanRangeFn(ctx, chainID, from, to)
}

func testRouter(t *testing.T, scanner ScanTrigger) http.Handler {
	t.Helper()
	if scanner == nil {
		scanner = &fakeScanner{}
	}
	h := NewHandler(nil, nil, nil, scanner, zap.NewNop())
	return h.Router()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v (%s)", err, rec.Body.String())
	}
	return body
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("body = %q, want OK", rec.Body.String())
	}
}

func TestGetDeposit_InvalidID(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deposits/abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeError(t, rec)
	if body["error"] != "invalid deposit id" {
		t.Fatalf("unexpected error message: %v", body)
	}
}

func TestListDeposits_InvalidDepositor(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/deposits?depositor=nothex", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListDeposits_InvalidPagination(t *testing.T) {
	for _, url := range []string{
		"/deposits?limit=0",
		"/deposits?limit=-5",
		"/deposits?limit=abc",
		"/deposits?offset=-1",
	} {
		rec := httptest.NewRecorder()
		testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: status = %d, want 400", url, rec.Code)
		}
	}
}

func TestListRewards_RequiresRecipient(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rewards", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListReferrals_InvalidAddress(t *testing.T) {
	rec := httptest.NewRecorder()
	testRouter(t, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/referrals/zzz", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerScan_InvalidJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan", bytes.NewBufferString("{"))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerScan_RequiresChainID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan", bytes.NewBufferString(`{"from":1,"to":2}`))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerScan_RejectsInvertedRange(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan",
		bytes.NewBufferString(`{"chain_id":1,"from":20,"to":10}`))
	testRouter(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestTriggerScan_RangeDispatch(t *testing.T) {
	var gotChain, gotFrom, gotTo uint64
	scanner := &fakeScanner{
		scanRangeFn: func(_ context.Context, chainID, from, to uint64) error {
			gotChain, gotFrom, gotTo = chainID, from, to
			return nil
		},
		scanChainFn: func(_ context.Context, _ uint64) error {
			t.Errorf("ScanChain called for a range request")
			return nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan",
		bytes.NewBufferString(`{"chain_id":10,"from":100,"to":200}`))
	testRouter(t, scanner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if gotChain != 10 || gotFrom != 100 || gotTo != 200 {
		t.Fatalf("scanned (%d, %d, %d), want (10, 100, 200)", gotChain, gotFrom, gotTo)
	}
}

func TestTriggerScan_CheckpointDispatch(t *testing.T) {
	called := false
	scanner := &fakeScanner{
		scanChainFn: func(_ context.Context, chainID uint64) error {
			called = true
			if chainID != 137 {
				t.Errorf("chain id = %d, want 137", chainID)
			}
			return nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/admin/scan",
		bytes.NewBufferString(`{"chain_id":137}`))
	testRouter(t, scanner).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if !called {
		t.Fatalf("ScanChain was not called")
	}
}
