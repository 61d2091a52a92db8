package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartime/bartime-api/internal/api/handler/v1/response"
	"github.com/bartime/bartime-api/internal/config"
	"github.com/bartime/bartime-api/internal/domain"
	"github.com/bartime/bartime-api/internal/repository/memstore"
	"github.com/bartime/bartime-api/internal/scan"
)

const password = "s3cret!pass"

type envelope[T any] struct {
	Success bool `json:"success"`
	Data    T    `json:"data"`
	Error   *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

type testAPI struct {
	t      *testing.T
	server *Server
	store  *memstore.Store
	log    *syncBuffer
}

// syncBuffer collects the access log of handlers running on other goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestAPI(t *testing.T, tweaks ...func(*config.AppConfig)) *testAPI {
	t.Helper()

	conf := &config.AppConfig{
		API: &config.APIConfig{
			JWTSigningKey:          "test-signing-key",
			JWTTTL:                 time.Hour,
			LoginAttemptsPerMinute: 100,
		},
		Gin: &config.GinConfig{Mode: "test"},
		Ledger: &config.LedgerConfig{
			DefaultFloor:    "0",
			MaxRetries:      5,
			HistoryMaxLimit: 100,
		},
	}
	for _, tweak := range tweaks {
		tweak(conf)
	}

	log := &syncBuffer{}
	store := memstore.New()
	s, err := NewServer(conf, Stores{
		Members: store.Members(),
		Badges:  store.Badges(),
		Ledger:  store.Ledger(),
		Catalog: store.Catalog(),
	}, WithAccessLog(log))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go s.Hub.Run(ctx)
	t.Cleanup(cancel)

	return &testAPI{t: t, server: s, store: store, log: log}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, "/api/v1"+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.server.Router.ServeHTTP(rec, req)

	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) envelope[T] {
	t.Helper()

	var env envelope[T]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())

	return env
}

func requireKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind string) {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	env := decode[json.RawMessage](t, rec)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, kind, env.Error.Kind)
}

// register creates an association and returns the owner's token.
func (a *testAPI) register(email string) (string, domain.Member) {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"association_name": "Bar des Arts",
		"name":             "Ada",
		"surname":          "Lovelace",
		"email":            email,
		"password":         password,
		"confirm_password": password,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decode[response.RegisterResponse](a.t, rec)
	require.NotEmpty(a.t, env.Data.Token)

	return env.Data.Token, env.Data.Member
}

// adherent creates a member of the owner's association and logs them in.
func (a *testAPI) adherent(ownerToken, email string) (string, domain.Member) {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/members", ownerToken, map[string]string{
		"name":             "Bob",
		"surname":          "Member",
		"email":            email,
		"password":         password,
		"confirm_password": password,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	member := decode[domain.Member](a.t, rec).Data

	return a.login(email), member
}

func (a *testAPI) login(email string) string {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())

	return decode[response.LoginResponse](a.t, rec).Data.Token
}

func (a *testAPI) pair(token, tagID string, memberID uint) {
	a.t.Helper()

	rec := a.do(http.MethodPost, "/badges/pair", token, map[string]any{
		"tag_id":    tagID,
		"member_id": memberID,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func ledgerBody(amount, reference string) map[string]string {
	return map[string]string{"amount": amount, "reference": reference}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Equal(t, want, got.StringFixed(2))
}

func TestServer_Healthcheck(t *testing.T) {
	a := newTestAPI(t)

	rec := httptest.NewRecorder()
	a.server.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[map[string]string](t, rec).Success)
}

func TestServer_Auth(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")

	rec := a.do(http.MethodGet, "/members/me", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	me := decode[domain.Member](t, rec).Data
	assert.Equal(t, domain.RoleAssociation, me.Role)

	requireKind(t, a.do(http.MethodGet, "/members/me", "", nil), http.StatusUnauthorized, response.KindUnauthorized)
	requireKind(t, a.do(http.MethodGet, "/members/me", "not-a-token", nil), http.StatusUnauthorized, response.KindUnauthorized)

	rec = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ada@bar.test", "password": "wrong"})
	requireKind(t, rec, http.StatusUnauthorized, response.KindWrongCredentials)

	rec = a.do(http.MethodPost, "/auth/register", "", map[string]string{
		"association_name": "Weak",
		"name":             "Eve",
		"surname":          "Weak",
		"email":            "eve@bar.test",
		"password":         "password",
		"confirm_password": "password",
	})
	requireKind(t, rec, http.StatusBadRequest, response.KindBadRequest)
}

func TestServer_LedgerFlow(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	rec := a.do(http.MethodPost, "/badges/TAG-1/topup", owner, ledgerBody("10.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[domain.LedgerResult](t, rec).Data
	requireDecimal(t, "10.00", result.Balance)
	assert.Equal(t, int64(1), result.Version)

	rec = a.do(http.MethodPost, "/badges/TAG-1/charge", owner, ledgerBody("3.50", "c1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result = decode[domain.LedgerResult](t, rec).Data
	requireDecimal(t, "6.50", result.Balance)
	assert.Equal(t, int64(2), result.Version)
	assert.False(t, result.Replayed)

	rec = a.do(http.MethodPost, "/badges/TAG-1/charge", owner, ledgerBody("3.50", "c1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result = decode[domain.LedgerResult](t, rec).Data
	assert.True(t, result.Replayed)
	requireDecimal(t, "6.50", result.Balance)

	requireKind(t, a.do(http.MethodPost, "/badges/TAG-1/charge", owner, ledgerBody("5.00", "c1")),
		http.StatusConflict, response.KindDuplicateReference)
	requireKind(t, a.do(http.MethodPost, "/badges/TAG-1/charge", owner, ledgerBody("100.00", "c2")),
		http.StatusUnprocessableEntity, response.KindInsufficientBalance)
	requireKind(t, a.do(http.MethodPost, "/badges/TAG-9/charge", owner, ledgerBody("1.00", "c3")),
		http.StatusNotFound, response.KindUnknownBadge)

	rec = a.do(http.MethodPost, "/badges/TAG-1/charge", owner, map[string]any{
		"amount":           "1.00",
		"reference":        "c4",
		"expected_version": 1,
	})
	requireKind(t, rec, http.StatusConflict, response.KindConcurrentModification)

	rec = a.do(http.MethodGet, "/badges/TAG-1/balance", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	balance := decode[domain.Balance](t, rec).Data
	requireDecimal(t, "6.50", balance.Balance)
	assert.Equal(t, int64(2), balance.Version)

	rec = a.do(http.MethodGet, "/badges/TAG-1/transactions?limit=1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[domain.HistoryPage](t, rec).Data
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, domain.TransactionPurchase, page.Transactions[0].Type)
	require.NotEmpty(t, page.NextCursor)

	rec = a.do(http.MethodGet, "/badges/TAG-1/transactions?limit=1&cursor="+page.NextCursor, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page = decode[domain.HistoryPage](t, rec).Data
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, domain.TransactionTopUp, page.Transactions[0].Type)

	requireKind(t, a.do(http.MethodGet, "/badges/TAG-1/transactions?limit=-1", owner, nil),
		http.StatusBadRequest, response.KindBadRequest)

	rec = a.do(http.MethodGet, "/badges/TAG-1/reconcile", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.Reconciliation](t, rec).Data.Consistent)
}

func TestServer_LedgerValidation(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	tests := []struct {
		name string
		path string
		body any
	}{
		{"zero charge", "/badges/TAG-1/charge", ledgerBody("0", "r1")},
		{"negative top-up", "/badges/TAG-1/topup", ledgerBody("-1.00", "r2")},
		{"sub-cent amount", "/badges/TAG-1/topup", ledgerBody("1.005", "r3")},
		{"missing reference", "/badges/TAG-1/charge", ledgerBody("1.00", "")},
		{"amount above limit", "/badges/TAG-1/topup", ledgerBody("10000.01", "r5")},
		{"adjust without reason", "/badges/TAG-1/adjust", map[string]string{"amount": "1.00"}},
		{"empty cart", "/badges/TAG-1/purchase", map[string]any{"items": []any{}, "reference": "r4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireKind(t, a.do(http.MethodPost, tt.path, owner, tt.body), http.StatusBadRequest, response.KindBadRequest)
		})
	}
}

func TestServer_Permissions(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	bobToken, bob := a.adherent(owner, "bob@bar.test")
	cleoToken, cleo := a.adherent(owner, "cleo@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	// The holder reads their own badge but cannot move money.
	rec := a.do(http.MethodGet, "/badges/TAG-1/balance", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireKind(t, a.do(http.MethodPost, "/badges/TAG-1/charge", bobToken, ledgerBody("1.00", "c1")),
		http.StatusForbidden, response.KindPermissionDenied)

	// Another adherent can read neither.
	requireKind(t, a.do(http.MethodGet, "/badges/TAG-1/balance", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
	requireKind(t, a.do(http.MethodGet, "/badges", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
	requireKind(t, a.do(http.MethodGet, fmt.Sprintf("/members/%d/badges", bob.ID), cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)

	rec = a.do(http.MethodGet, fmt.Sprintf("/members/%d/badges", bob.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]domain.BadgeView](t, rec).Data, 1)

	// Granting manage_bar applies to the next request with the same token.
	rec = a.do(http.MethodPut, fmt.Sprintf("/members/%d/permissions", cleo.ID), owner, map[string]any{
		"permissions": []string{domain.PermissionManageBar},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/badges/TAG-1/topup", cleoToken, ledgerBody("2.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Removal and association settings stay with the association role.
	requireKind(t, a.do(http.MethodDelete, "/badges/TAG-1", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
	requireKind(t, a.do(http.MethodGet, "/association", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
}

func TestServer_AssociationsAreIsolated(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	other, _ := a.register("zoe@other.test")

	requireKind(t, a.do(http.MethodGet, "/badges/TAG-1/balance", other, nil),
		http.StatusNotFound, response.KindUnknownBadge)
	requireKind(t, a.do(http.MethodPost, "/badges/TAG-1/topup", other, ledgerBody("5.00", "t1")),
		http.StatusNotFound, response.KindUnknownBadge)

	rec := a.do(http.MethodPost, "/badges/pair", other, map[string]any{"tag_id": "TAG-2", "member_id": bob.ID})
	requireKind(t, rec, http.StatusNotFound, response.KindUnknownMember)
}

func TestServer_BadgeLifecycle(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	rec := a.do(http.MethodPost, "/badges/pair", owner, map[string]any{"tag_id": "TAG-1", "member_id": bob.ID})
	requireKind(t, rec, http.StatusConflict, response.KindAlreadyPaired)

	requireKind(t, a.do(http.MethodDelete, "/badges/TAG-1", owner, nil),
		http.StatusConflict, response.KindBadgeStillActive)

	rec = a.do(http.MethodPut, "/badges/TAG-1/deactivate", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.BadgeInactive, decode[domain.Badge](t, rec).Data.Status)

	requireKind(t, a.do(http.MethodPost, "/badges/TAG-1/topup", owner, ledgerBody("1.00", "t1")),
		http.StatusUnprocessableEntity, response.KindBadgeInactive)

	rec = a.do(http.MethodPut, "/badges/TAG-1/activate", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/badges/TAG-1/topup", owner, ledgerBody("1.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPut, "/badges/TAG-1/deactivate", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodDelete, "/badges/TAG-1", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, domain.BadgeRemoved, decode[domain.Badge](t, rec).Data.Status)

	requireKind(t, a.do(http.MethodGet, "/badges/TAG-1", owner, nil),
		http.StatusNotFound, response.KindUnknownBadge)
}

func TestServer_CatalogAndPurchase(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	bobToken, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	rec := a.do(http.MethodPost, "/categories", owner, map[string]string{"name": "Drinks"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	drinks := decode[domain.Category](t, rec).Data

	requireKind(t, a.do(http.MethodPost, "/categories", bobToken, map[string]string{"name": "Food"}),
		http.StatusForbidden, response.KindPermissionDenied)

	rec = a.do(http.MethodPost, "/products", owner, map[string]any{
		"name":        "Beer",
		"price":       "2.50",
		"category_id": drinks.ID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	beer := decode[domain.Product](t, rec).Data
	assert.True(t, beer.Available)

	rec = a.do(http.MethodGet, "/products", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[[]domain.Product](t, rec).Data, 1)

	rec = a.do(http.MethodGet, fmt.Sprintf("/categories/%d/usage", drinks.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	usage := decode[response.CategoryUsageResponse](t, rec).Data
	assert.Equal(t, int64(1), usage.Products)
	assert.True(t, usage.InUse)

	requireKind(t, a.do(http.MethodDelete, fmt.Sprintf("/categories/%d", drinks.ID), owner, nil),
		http.StatusConflict, response.KindConflict)

	rec = a.do(http.MethodPost, "/badges/TAG-1/topup", owner, ledgerBody("6.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	cart := map[string]any{
		"items":     []map[string]any{{"product_id": beer.ID, "quantity": 2}},
		"reference": "order-1",
	}
	rec = a.do(http.MethodPost, "/badges/TAG-1/purchase", owner, cart)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/badges/TAG-1/purchase", owner, cart)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/badges/TAG-1/balance", bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireDecimal(t, "1.00", decode[domain.Balance](t, rec).Data.Balance)
}

func TestServer_ScanLongPoll(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-1", bob.ID)

	rec := a.do(http.MethodGet, "/stations/bar-1/scans/next?wait=1", owner, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	requireKind(t, a.do(http.MethodGet, "/stations/bar-1/scans/next?wait=soon", owner, nil),
		http.StatusBadRequest, response.KindBadRequest)

	waited := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		waited <- a.do(http.MethodGet, "/stations/bar-1/scans/next?wait=5", owner, nil)
	}()

	// The waiter may not be registered yet; keep scanning until it answers.
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(5 * time.Second)

	var got *httptest.ResponseRecorder
	for got == nil {
		select {
		case got = <-waited:
		case <-ticker.C:
			rec := a.do(http.MethodPost, "/stations/bar-1/scans", owner, map[string]string{"tag_id": "TAG-1"})
			require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		case <-deadline:
			t.Fatal("no scan delivered to the waiting station")
		}
	}

	require.Equal(t, http.StatusOK, got.Code, got.Body.String())
	event := decode[scan.Event](t, got).Data
	assert.True(t, event.Known)
	assert.Equal(t, "bar-1", event.Station)
	require.NotNil(t, event.Badge)
	assert.Equal(t, bob.ID, event.Badge.Member.ID)
}

func TestServer_ScanStream(t *testing.T) {
	a := newTestAPI(t)
	owner, ada := a.register("ada@bar.test")

	srv := httptest.NewServer(a.server.Router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stations/bar-1/ws?token=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				a.server.Hub.Publish(context.Background(), ada.AssociationID, "bar-1", "UNKNOWN-TAG")
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var event scan.Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "UNKNOWN-TAG", event.TagID)
	assert.False(t, event.Known)
	assert.Nil(t, event.Badge)
}

func TestServer_RemovedBadgeStaysAuditable(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	bobToken, bob := a.adherent(owner, "bob@bar.test")
	a.pair(owner, "TAG-R", bob.ID)

	rec := a.do(http.MethodPost, "/badges/TAG-R/topup", owner, ledgerBody("5.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	topUp := decode[domain.LedgerResult](t, rec).Data.Transaction

	require.Equal(t, http.StatusOK, a.do(http.MethodPut, "/badges/TAG-R/deactivate", owner, nil).Code)
	require.Equal(t, http.StatusOK, a.do(http.MethodDelete, "/badges/TAG-R", owner, nil).Code)

	// The tag no longer resolves, but the record's log does.
	requireKind(t, a.do(http.MethodGet, "/badges/TAG-R/transactions", owner, nil),
		http.StatusNotFound, response.KindUnknownBadge)

	for _, token := range []string{owner, bobToken} {
		rec = a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", bob.ID), token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		page := decode[domain.HistoryPage](t, rec).Data
		require.Len(t, page.Transactions, 1)
		assert.Equal(t, topUp.ID, page.Transactions[0].ID)
		assert.Equal(t, "TAG-R", page.Transactions[0].TagID)
	}

	rec = a.do(http.MethodGet, fmt.Sprintf("/transactions/%d", topUp.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	requireDecimal(t, "5.00", decode[domain.Transaction](t, rec).Data.Amount)

	// Re-pairing the tag starts a fresh account; the member sees both.
	a.pair(owner, "TAG-R", bob.ID)
	rec = a.do(http.MethodPost, "/badges/TAG-R/topup", owner, ledgerBody("2.00", "t1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	requireDecimal(t, "2.00", decode[domain.LedgerResult](t, rec).Data.Balance)

	rec = a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", bob.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	txns := decode[domain.HistoryPage](t, rec).Data.Transactions
	require.Len(t, txns, 2)
	assert.NotEqual(t, txns[0].BadgeID, txns[1].BadgeID)
}

func TestServer_TransactionViews(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")
	_, bob := a.adherent(owner, "bob@bar.test")
	cleoToken, cleo := a.adherent(owner, "cleo@bar.test")
	a.pair(owner, "TAG-B", bob.ID)
	a.pair(owner, "TAG-C", cleo.ID)

	for i, tag := range []string{"TAG-B", "TAG-C", "TAG-B"} {
		rec := a.do(http.MethodPost, "/badges/"+tag+"/topup", owner, ledgerBody("1.00", fmt.Sprintf("t%d", i)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := a.do(http.MethodGet, "/transactions?limit=2", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[domain.HistoryPage](t, rec).Data
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "TAG-B", page.Transactions[0].TagID)
	assert.Equal(t, "TAG-C", page.Transactions[1].TagID)
	require.NotEmpty(t, page.NextCursor)

	rec = a.do(http.MethodGet, "/transactions?limit=2&cursor="+page.NextCursor, owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page = decode[domain.HistoryPage](t, rec).Data
	require.Len(t, page.Transactions, 1)
	assert.Empty(t, page.NextCursor)

	rec = a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", bob.ID), owner, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[domain.HistoryPage](t, rec).Data.Transactions, 2)

	// Adherents only see their own.
	requireKind(t, a.do(http.MethodGet, "/transactions", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
	requireKind(t, a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", bob.ID), cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)
	requireKind(t, a.do(http.MethodGet, "/transactions/1", cleoToken, nil),
		http.StatusForbidden, response.KindPermissionDenied)

	rec = a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", cleo.ID), cleoToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decode[domain.HistoryPage](t, rec).Data.Transactions, 1)

	// Another association sees none of it.
	other, _ := a.register("zoe@other.test")
	requireKind(t, a.do(http.MethodGet, fmt.Sprintf("/members/%d/transactions", bob.ID), other, nil),
		http.StatusNotFound, response.KindUnknownMember)
	requireKind(t, a.do(http.MethodGet, "/transactions/1", other, nil),
		http.StatusNotFound, response.KindNotFound)
	rec = a.do(http.MethodGet, "/transactions", other, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[domain.HistoryPage](t, rec).Data.Transactions)

	requireKind(t, a.do(http.MethodGet, "/transactions/first", owner, nil),
		http.StatusBadRequest, response.KindBadRequest)
	requireKind(t, a.do(http.MethodGet, "/transactions?cursor=%25%25", owner, nil),
		http.StatusBadRequest, response.KindBadRequest)
}

func TestServer_AccessLogRedactsToken(t *testing.T) {
	a := newTestAPI(t)
	owner, _ := a.register("ada@bar.test")

	rec := a.do(http.MethodGet, "/members/me?token="+owner+"&view=full", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	logged := a.log.String()
	assert.Contains(t, logged, "/api/v1/members/me?")
	assert.Contains(t, logged, "token=REDACTED")
	assert.Contains(t, logged, "view=full")
	assert.NotContains(t, logged, owner)
}

func TestServer_ScanStreamChecksOrigin(t *testing.T) {
	a := newTestAPI(t, func(conf *config.AppConfig) {
		conf.API.AllowedCORSDomains = []string{"https://bar.test"}
	})
	owner, _ := a.register("ada@bar.test")

	srv := httptest.NewServer(a.server.Router)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stations/bar-1/ws?token=" + owner

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.test"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://bar.test"}})
	require.NoError(t, err)
	conn.Close()
}
