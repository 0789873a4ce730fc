package sale_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/exchange"
	salehttp "github.com/lochiel/hacienda/internal/http/sale"
	"github.com/lochiel/hacienda/internal/sale"
)

type rates func(ctx context.Context) (decimal.Decimal, error)

func (f rates) Suggest(ctx context.Context) (decimal.Decimal, error) { return f(ctx) }

func newRouter(repo sale.Repository, suggester salehttp.RateSuggester) http.Handler {
	r := chi.NewRouter()
	salehttp.NewHandler(sale.NewService(repo, decimal.NewFromFloat(10.5)), suggester).Routes(r)

	return r
}

func TestHandler(t *testing.T) {
	id := uuid.New()

	type testCase struct {
		name       string
		method     string
		path       string
		body       string
		rates      salehttp.RateSuggester
		setupMock  func(ctrl *gomock.Controller, repo *sale.MockRepository)
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}

	tests := []testCase{
		{
			name:   "create",
			method: http.MethodPost,
			path:   "/",
			body:   `{"document_number":"017885409-7","establishment":"LOCHIEL","destination_holder":"Frigorífico del Sur","issue_date":"2024-10-25","document_fee":"1500.50"}`,
			setupMock: func(_ *gomock.Controller, repo *sale.MockRepository) {
				repo.EXPECT().CreateSale(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *sale.Sale) error {
					s.ID = id
					return nil
				})
			},
			wantStatus: http.StatusCreated,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, id.String(), body["id"])
				assert.Equal(t, "ABIERTO", body["state"])
				assert.Equal(t, "Abierto", body["state_label"])
				assert.Equal(t, "1500.5", body["document_fee"])
				assert.Equal(t, "10.5", body["iva_percent"])
			},
		},
		{
			name:       "create rejects unknown establishment",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"document_number":"1","establishment":"OTRA"}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				fields, ok := body["fields"].(map[string]any)
				require.True(t, ok)
				assert.Equal(t, "oneof", fields["establishment"])
			},
		},
		{
			name:       "create rejects unknown category",
			method:     http.MethodPost,
			path:       "/",
			body:       `{"document_number":"1","establishment":"LOCHIEL","category":"VACA"}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "category", body["field"])
			},
		},
		{
			name:   "get missing sale",
			method: http.MethodGet,
			path:   "/" + id.String(),
			setupMock: func(_ *gomock.Controller, repo *sale.MockRepository) {
				repo.EXPECT().GetSale(gomock.Any(), id).Return(nil, sale.ErrNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "malformed id",
			method:     http.MethodGet,
			path:       "/not-a-uuid",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "list with unknown state",
			method:     http.MethodGet,
			path:       "/?state=VENDIDO",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "list maps legacy state",
			method: http.MethodGet,
			path:   "/?state=liquidado&holder=sur",
			setupMock: func(_ *gomock.Controller, repo *sale.MockRepository) {
				repo.EXPECT().ListSales(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f sale.ListFilter) ([]*sale.Sale, error) {
					require.NotNil(t, f.State)
					assert.Equal(t, sale.StateWeighed, *f.State)
					assert.Equal(t, "sur", f.Holder)

					return nil, nil
				})
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "transition not in table",
			method: http.MethodPost,
			path:   "/" + id.String() + "/state",
			body:   `{"state":"FINALIZADO"}`,
			setupMock: func(ctrl *gomock.Controller, repo *sale.MockRepository) {
				stx := sale.NewMockSaleTx(ctrl)
				repo.EXPECT().BeginSale(gomock.Any(), id).Return(stx, nil)
				stx.EXPECT().Sale(gomock.Any()).Return(&sale.Sale{ID: id, State: sale.StateOpen}, nil)
				stx.EXPECT().Rollback().Return(nil)
			},
			wantStatus: http.StatusConflict,
		},
		{
			name:   "cancel",
			method: http.MethodPost,
			path:   "/" + id.String() + "/state",
			body:   `{"state":"cancelado"}`,
			setupMock: func(ctrl *gomock.Controller, repo *sale.MockRepository) {
				stx := sale.NewMockSaleTx(ctrl)
				repo.EXPECT().BeginSale(gomock.Any(), id).Return(stx, nil)
				stx.EXPECT().Sale(gomock.Any()).Return(&sale.Sale{ID: id, State: sale.StateOpen}, nil)
				stx.EXPECT().UpdateSale(gomock.Any(), gomock.Any()).Return(nil)
				stx.EXPECT().Commit().Return(nil)
				stx.EXPECT().Rollback().Return(nil)
			},
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "CANCELADO", body["state"])
				assert.Empty(t, body["next_states"])
			},
		},
		{
			name:   "dollar price without rate and exchange down",
			method: http.MethodPost,
			path:   "/" + id.String() + "/price",
			body:   `{"price_per_kg":"2.5","currency":"USD"}`,
			rates: rates(func(context.Context) (decimal.Decimal, error) {
				return decimal.Zero, exchange.ErrUnavailable
			}),
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "payment requires positive amount",
			method:     http.MethodPost,
			path:       "/" + id.String() + "/payments",
			body:       `{"amount":"0","currency":"ARS","date":"2024-11-02","method":"TRANSFERENCIA"}`,
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:   "delete payment on closed sale",
			method: http.MethodDelete,
			path:   "/" + id.String() + "/payments/" + uuid.NewString(),
			setupMock: func(ctrl *gomock.Controller, repo *sale.MockRepository) {
				stx := sale.NewMockSaleTx(ctrl)
				repo.EXPECT().BeginSale(gomock.Any(), id).Return(stx, nil)
				stx.EXPECT().Sale(gomock.Any()).Return(&sale.Sale{ID: id, State: sale.StateFinalized}, nil)
				stx.EXPECT().Rollback().Return(nil)
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := sale.NewMockRepository(ctrl)

			if tc.setupMock != nil {
				tc.setupMock(ctrl, repo)
			}

			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			rec := httptest.NewRecorder()

			newRouter(repo, tc.rates).ServeHTTP(rec, req)

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.check != nil {
				var body map[string]any
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				tc.check(t, body)
			}
		})
	}
}
