package sale_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/dut"
	"github.com/lochiel/hacienda/internal/metrics"
	"github.com/lochiel/hacienda/internal/sale"
)

var defaultIVA = decimal.RequireFromString("10.5")

// expectTx wires a transaction scope that hands out current as the locked
// sale. Rollback is deferred by the service on every path.
func expectTx(ctrl *gomock.Controller, repo *sale.MockRepository, current *sale.Sale) *sale.MockSaleTx {
	stx := sale.NewMockSaleTx(ctrl)

	repo.EXPECT().BeginSale(gomock.Any(), current.ID).Return(stx, nil)
	stx.EXPECT().Sale(gomock.Any()).DoAndReturn(func(context.Context) (*sale.Sale, error) {
		cp := *current
		return &cp, nil
	})
	stx.EXPECT().Rollback().Return(nil).AnyTimes()

	return stx
}

// expectWrite accepts the update and copies it back into current.
func expectWrite(stx *sale.MockSaleTx, current *sale.Sale) {
	stx.EXPECT().UpdateSale(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, s *sale.Sale) error {
		*current = *s
		return nil
	})
	stx.EXPECT().Commit().Return(nil)
}

func TestService_Create(t *testing.T) {
	type args struct {
		params sale.CreateParams
	}

	type testCase struct {
		name      string
		args      args
		setupMock func(m *sale.MockRepository)
		wantErr   error
		wantField string
	}

	valid := sale.CreateParams{
		DocumentNumber:    " 017885409-7 ",
		Establishment:     sale.EstablishmentLochiel,
		DestinationHolder: "FRIGORIFICO PATAGONIA SRL",
		QuantityDeclared:  new(412),
		DocumentFee:       nd("1250"),
	}

	tests := []testCase{
		{
			name: "Success",
			args: args{params: valid},
			setupMock: func(m *sale.MockRepository) {
				m.EXPECT().
					CreateSale(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, s *sale.Sale) error {
						s.ID = uuid.New()
						s.CreatedAt = time.Now()
						return nil
					})
			},
		},
		{
			name: "Duplicate",
			args: args{params: valid},
			setupMock: func(m *sale.MockRepository) {
				m.EXPECT().
					CreateSale(gomock.Any(), gomock.Any()).
					Return(sale.ErrDuplicateDocument)
			},
			wantErr: sale.ErrDuplicateDocument,
		},
		{
			name:      "MissingDocumentNumber",
			args:      args{params: sale.CreateParams{Establishment: sale.EstablishmentLochiel}},
			wantField: "document_number",
		},
		{
			name:      "UnknownEstablishment",
			args:      args{params: sale.CreateParams{DocumentNumber: "1", Establishment: "OTRA"}},
			wantField: "establishment",
		},
		{
			name: "NegativeFee",
			args: args{params: sale.CreateParams{
				DocumentNumber: "1",
				Establishment:  sale.EstablishmentCaboCurioso,
				GuideFee:       nd("-3"),
			}},
			wantField: "guide_fee",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := sale.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := sale.NewService(repo, defaultIVA)
			got, err := svc.Create(context.Background(), tt.args.params)

			if tt.wantErr != nil || tt.wantField != "" {
				require.Error(t, err)
				assert.Nil(t, got)

				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}

				if tt.wantField != "" {
					var vErr *sale.ValidationError
					require.True(t, errors.As(err, &vErr))
					assert.Equal(t, tt.wantField, vErr.Field)
				}

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, "017885409-7", got.DocumentNumber)
			assert.Equal(t, sale.StateOpen, got.State)
			assertDecimal(t, "10.5", got.IVAPercent, "iva percent")
		})
	}
}

func TestService_CreateFromExtraction(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	repo.EXPECT().
		CreateSale(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, s *sale.Sale) error {
			s.ID = uuid.New()
			return nil
		})

	res := &dut.Result{
		DocumentNumber:    "2024-002",
		DestinationHolder: "Frigorífico del Sur S.A.",
		IssueDate:         "2024-03-14",
		LoadDate:          "99/99/9999",
		Category:          dut.CategoryBorrego,
		Quantity:          new(250),
		DocumentFee:       nd("200"),
	}

	got, err := sale.NewService(repo, defaultIVA).CreateFromExtraction(context.Background(), res, sale.EstablishmentCaboCurioso)
	require.NoError(t, err)

	assert.Equal(t, "Frigorífico del Sur S.A.", got.DestinationHolder)
	assert.Equal(t, dut.CategoryBorrego, got.Category)
	assert.Equal(t, new(250), got.QuantityDeclared)
	require.NotNil(t, got.IssueDate)
	assert.Equal(t, "2024-03-14", got.IssueDate.Format(time.DateOnly))
	assert.Nil(t, got.LoadDate)
	assertDecimal(t, "200", got.DocumentFee, "document fee")
}

func TestService_AddPayment(t *testing.T) {
	type testCase struct {
		name      string
		sale      sale.Sale
		params    sale.PaymentParams
		existing  []*sale.Payment
		wantErr   error
		wantField string
		wantPaid  string
	}

	paidOn := time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC)
	priced := sale.Sale{
		ID:            uuid.New(),
		State:         sale.StateWeighed,
		TotalPayable:  nd("1000"),
		TotalPaid:     dec("400"),
		PriceAssigned: true,
	}

	tests := []testCase{
		{
			name:     "ARSWithinBalance",
			sale:     priced,
			existing: []*sale.Payment{arsPayment("400")},
			params: sale.PaymentParams{
				Amount: dec("600"), Currency: sale.CurrencyARS, Method: sale.PaymentTransfer, Date: paidOn,
			},
			wantPaid: "1000",
		},
		{
			name:     "USDNormalizedWithOwnRate",
			sale:     priced,
			existing: []*sale.Payment{arsPayment("400")},
			params: sale.PaymentParams{
				Amount: dec("0.5"), Currency: sale.CurrencyUSD, ExchangeRate: nd("1000"),
				Method: sale.PaymentCheck, Date: paidOn,
			},
			wantPaid: "900",
		},
		{
			name:     "Overpayment",
			sale:     priced,
			existing: []*sale.Payment{arsPayment("400")},
			params: sale.PaymentParams{
				Amount: dec("600.01"), Currency: sale.CurrencyARS, Method: sale.PaymentCash, Date: paidOn,
			},
			wantField: "amount",
		},
		{
			name: "BeforePrice",
			sale: sale.Sale{ID: uuid.New(), State: sale.StatePickedUp},
			params: sale.PaymentParams{
				Amount: dec("10"), Currency: sale.CurrencyARS, Method: sale.PaymentCash, Date: paidOn,
			},
			wantErr: sale.ErrPriceNotAssigned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := sale.NewMockRepository(ctrl)
			current := tt.sale
			stx := expectTx(ctrl, repo, &current)

			stx.EXPECT().ListPayments(gomock.Any()).Return(tt.existing, nil)

			if tt.wantPaid != "" {
				stx.EXPECT().
					CreatePayment(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, p *sale.Payment) error {
						p.ID = uuid.New()
						return nil
					})
				stx.EXPECT().SumPayments(gomock.Any()).Return(dec(tt.wantPaid), nil)
				expectWrite(stx, &current)
			}

			svc := sale.NewService(repo, defaultIVA)
			got, err := svc.AddPayment(context.Background(), current.ID, tt.params)

			if tt.wantErr != nil || tt.wantField != "" {
				require.Error(t, err)
				assert.Nil(t, got)

				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}

				if tt.wantField != "" {
					var vErr *sale.ValidationError
					require.True(t, errors.As(err, &vErr))
					assert.Equal(t, tt.wantField, vErr.Field)
				}

				assert.Equal(t, tt.sale, current, "rejected payment must not write the sale")

				return
			}

			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, current.ID, got.SaleID)
			assert.True(t, dec(tt.wantPaid).Equal(current.TotalPaid))
		})
	}
}

func TestService_AddPayment_InvalidInputSkipsStore(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	svc := sale.NewService(repo, defaultIVA)

	_, err := svc.AddPayment(context.Background(), uuid.New(), sale.PaymentParams{
		Amount: dec("10"), Currency: sale.CurrencyUSD, Method: sale.PaymentTransfer, Date: time.Now(),
	})

	var vErr *sale.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "exchange_rate", vErr.Field)
}

func TestService_UpdatePayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	first, second := arsPayment("300"), arsPayment("500")
	current := sale.Sale{
		ID: uuid.New(), State: sale.StateWeighed, TotalPayable: nd("1000"), TotalPaid: dec("800"), PriceAssigned: true,
	}

	repo := sale.NewMockRepository(ctrl)
	stx := expectTx(ctrl, repo, &current)
	stx.EXPECT().ListPayments(gomock.Any()).Return([]*sale.Payment{first, second}, nil)
	stx.EXPECT().
		UpdatePayment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p *sale.Payment) error {
			assert.Equal(t, second.ID, p.ID)
			return nil
		})
	stx.EXPECT().SumPayments(gomock.Any()).Return(dec("1000"), nil)
	expectWrite(stx, &current)

	_, err := sale.NewService(repo, defaultIVA).UpdatePayment(context.Background(), current.ID, second.ID, sale.PaymentParams{
		Amount: dec("700"), Currency: sale.CurrencyARS, Method: sale.PaymentTransfer, Date: second.Date,
	})
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(current.TotalPaid))
}

func TestService_UpdatePayment_UnknownID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{ID: uuid.New(), State: sale.StateWeighed, TotalPayable: nd("1000")}

	repo := sale.NewMockRepository(ctrl)
	stx := expectTx(ctrl, repo, &current)
	stx.EXPECT().ListPayments(gomock.Any()).Return([]*sale.Payment{arsPayment("100")}, nil)

	_, err := sale.NewService(repo, defaultIVA).UpdatePayment(context.Background(), current.ID, uuid.New(), sale.PaymentParams{
		Amount: dec("1"), Currency: sale.CurrencyARS, Method: sale.PaymentCash, Date: time.Now(),
	})
	assert.ErrorIs(t, err, sale.ErrNotFound)
}

func TestService_DeletePayment(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	paymentID := uuid.New()
	current := sale.Sale{ID: uuid.New(), State: sale.StateWeighed, TotalPayable: nd("1000"), TotalPaid: dec("1000")}

	repo := sale.NewMockRepository(ctrl)
	stx := expectTx(ctrl, repo, &current)
	stx.EXPECT().DeletePayment(gomock.Any(), paymentID).Return(nil)
	stx.EXPECT().SumPayments(gomock.Any()).Return(dec("250"), nil)
	expectWrite(stx, &current)

	err := sale.NewService(repo, defaultIVA).DeletePayment(context.Background(), current.ID, paymentID)
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(current.TotalPaid))
}

// The sale cannot be finalized with 1 left to pay; once a payment covers it
// the same transition goes through.
func TestService_FinalizationGuard(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{
		ID:            uuid.New(),
		State:         sale.StateWeighed,
		TotalPayable:  nd("1000"),
		TotalPaid:     dec("999"),
		PriceAssigned: true,
	}

	repo := sale.NewMockRepository(ctrl)
	svc := sale.NewService(repo, defaultIVA)
	ctx := context.Background()

	expectTx(ctrl, repo, &current)

	_, err := svc.Transition(ctx, current.ID, sale.StateFinalized)

	var tErr *sale.TransitionError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, sale.GuardBalanceSettled, tErr.Guard)
	assert.Equal(t, sale.StateWeighed, current.State)

	stx := expectTx(ctrl, repo, &current)
	stx.EXPECT().ListPayments(gomock.Any()).Return([]*sale.Payment{arsPayment("999")}, nil)
	stx.EXPECT().CreatePayment(gomock.Any(), gomock.Any()).Return(nil)
	stx.EXPECT().SumPayments(gomock.Any()).Return(dec("1000"), nil)
	expectWrite(stx, &current)

	_, err = svc.AddPayment(ctx, current.ID, sale.PaymentParams{
		Amount: dec("1"), Currency: sale.CurrencyARS, Method: sale.PaymentTransfer, Date: time.Now(),
	})
	require.NoError(t, err)

	stx = expectTx(ctrl, repo, &current)
	expectWrite(stx, &current)

	got, err := svc.Transition(ctx, current.ID, sale.StateFinalized)
	require.NoError(t, err)
	assert.Equal(t, sale.StateFinalized, got.State)
	assert.Equal(t, sale.StateFinalized, current.State)
}

func TestService_RecordWeighing(t *testing.T) {
	type testCase struct {
		name      string
		state     sale.State
		docs      []*sale.Document
		wantState sale.State
		wantGuard sale.Guard
		wantErr   bool
	}

	tests := []testCase{
		{
			name:      "PickedUpWithRomaneo",
			state:     sale.StatePickedUp,
			docs:      []*sale.Document{{Type: sale.DocumentRomaneo}},
			wantState: sale.StateWeighed,
		},
		{
			name:      "PickedUpWithoutRomaneo",
			state:     sale.StatePickedUp,
			docs:      []*sale.Document{{Type: sale.DocumentDUT}},
			wantGuard: sale.GuardRomaneoDocument,
			wantErr:   true,
		},
		{
			name:    "NotPickedUp",
			state:   sale.StateOpen,
			wantErr: true,
		},
		{
			name:      "CorrectionAfterWeighing",
			state:     sale.StateWeighed,
			wantState: sale.StateWeighed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			current := sale.Sale{ID: uuid.New(), State: tt.state, IVAPercent: nd("10.5")}

			repo := sale.NewMockRepository(ctrl)
			stx := expectTx(ctrl, repo, &current)

			if tt.state != sale.StateWeighed {
				stx.EXPECT().ListDocuments(gomock.Any()).Return(tt.docs, nil)
			}

			if !tt.wantErr {
				expectWrite(stx, &current)
			}

			got, err := sale.NewService(repo, defaultIVA).RecordWeighing(context.Background(), current.ID, sale.WeighingParams{
				QuantityWeighed: 40,
				TotalWeightKg:   dec("1000"),
				WeighingDate:    time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
			})

			if tt.wantErr {
				var tErr *sale.TransitionError
				require.True(t, errors.As(err, &tErr))
				assert.Equal(t, tt.wantGuard, tErr.Guard)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantState, got.State)
			assertDecimal(t, "25", got.AvgWeightPerHead, "avg weight")
		})
	}
}

func TestService_RecordPickup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{ID: uuid.New(), State: sale.StateOpen}

	repo := sale.NewMockRepository(ctrl)
	stx := expectTx(ctrl, repo, &current)
	expectWrite(stx, &current)

	got, err := sale.NewService(repo, defaultIVA).RecordPickup(context.Background(), current.ID, sale.PickupParams{
		Troop:          " T-104 ",
		RemitoNumber:   "0001-00000321",
		PickupDate:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		QuantityLoaded: 410,
	})
	require.NoError(t, err)
	assert.Equal(t, sale.StatePickedUp, got.State)
	assert.Equal(t, "T-104", got.Troop)
	assert.Equal(t, new(410), got.QuantityLoaded)
}

func TestService_AssignPrice_BeforeWeighing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{ID: uuid.New(), State: sale.StatePickedUp, IVAPercent: nd("10.5")}

	repo := sale.NewMockRepository(ctrl)
	expectTx(ctrl, repo, &current)

	_, err := sale.NewService(repo, defaultIVA).AssignPrice(context.Background(), current.ID, sale.PriceInput{
		PricePerKg: dec("10"),
		Currency:   sale.CurrencyARS,
	})

	var vErr *sale.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "total_weight_kg", vErr.Field)
	assert.False(t, current.PriceAssigned)
}

func TestService_Update_RejectsPayableBelowPaid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{
		ID:             uuid.New(),
		State:          sale.StateWeighed,
		InvoiceExempt:  true,
		AmountOriginal: nd("1000"),
		TotalWithTax:   nd("1000"),
		TotalPayable:   nd("1000"),
		TotalPaid:      dec("1000"),
		PriceAssigned:  true,
	}

	repo := sale.NewMockRepository(ctrl)
	expectTx(ctrl, repo, &current)

	_, err := sale.NewService(repo, defaultIVA).Update(context.Background(), current.ID, sale.UpdateParams{
		Withholding: nd("10"),
	})

	var vErr *sale.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "total_payable", vErr.Field)
}

func TestService_Delete(t *testing.T) {
	type testCase struct {
		name      string
		sale      *sale.Sale
		setupMock func(m *sale.MockRepository, s *sale.Sale)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "OpenSale",
			sale: &sale.Sale{ID: uuid.New(), State: sale.StateOpen},
			setupMock: func(m *sale.MockRepository, s *sale.Sale) {
				m.EXPECT().GetSale(gomock.Any(), s.ID).Return(s, nil)
				m.EXPECT().DeleteSale(gomock.Any(), s.ID).Return(nil)
			},
		},
		{
			name: "WeighedSale",
			sale: &sale.Sale{ID: uuid.New(), State: sale.StateWeighed},
			setupMock: func(m *sale.MockRepository, s *sale.Sale) {
				m.EXPECT().GetSale(gomock.Any(), s.ID).Return(s, nil)
			},
			wantErr: true,
		},
		{
			name: "CancelledWithPayments",
			sale: &sale.Sale{ID: uuid.New(), State: sale.StateCancelled, TotalPaid: dec("10")},
			setupMock: func(m *sale.MockRepository, s *sale.Sale) {
				m.EXPECT().GetSale(gomock.Any(), s.ID).Return(s, nil)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := sale.NewMockRepository(ctrl)
			tt.setupMock(repo, tt.sale)

			err := sale.NewService(repo, defaultIVA).Delete(context.Background(), tt.sale.ID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestService_Reconcile_SkipsOpenAlerts(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	s := &sale.Sale{
		ID:               uuid.New(),
		State:            sale.StateWeighed,
		QuantityDeclared: new(40),
		QuantityWeighed:  new(38),
		AvgWeightPerHead: nd("70"),
	}

	repo := sale.NewMockRepository(ctrl)
	repo.EXPECT().GetSale(gomock.Any(), s.ID).Return(s, nil)
	repo.EXPECT().ListDocuments(gomock.Any(), s.ID).Return(nil, nil)
	repo.EXPECT().
		ListAlerts(gomock.Any(), sale.AlertFilter{SaleID: &s.ID, Unresolved: true}).
		Return([]*sale.Alert{{SaleID: s.ID, Type: sale.AlertQuantityMismatch}}, nil)

	var stored []sale.AlertType

	repo.EXPECT().
		CreateAlert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, a *sale.Alert) error {
			stored = append(stored, a.Type)
			return nil
		}).
		Times(2)

	got, err := sale.NewService(repo, defaultIVA).Reconcile(context.Background(), s.ID)
	require.NoError(t, err)

	assert.ElementsMatch(t, []sale.AlertType{sale.AlertWeightMismatch, sale.AlertMissingDocument}, stored)
	assert.Len(t, got, 2)
}

func TestService_Stats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := sale.NewMockRepository(ctrl)
	repo.EXPECT().
		Stats(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, start, end time.Time) (*sale.Stats, error) {
			assert.Equal(t, 1, start.Day())
			assert.Equal(t, start.AddDate(0, 1, 0), end)

			return &sale.Stats{ActiveSales: 3, Receivables: dec("1500")}, nil
		})
	repo.EXPECT().
		ListAlerts(gomock.Any(), sale.AlertFilter{Unresolved: true, Limit: 5}).
		Return([]*sale.Alert{{Type: sale.AlertPaymentOverdue}}, nil)

	got, err := sale.NewService(repo, defaultIVA).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got.ActiveSales)
	assert.Len(t, got.OpenAlerts, 1)
}

func TestService_DeletePaymentClosedSale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{ID: uuid.New(), State: sale.StateFinalized, TotalPayable: nd("1000"), TotalPaid: dec("1000")}

	repo := sale.NewMockRepository(ctrl)
	expectTx(ctrl, repo, &current)

	err := sale.NewService(repo, defaultIVA).DeletePayment(context.Background(), current.ID, uuid.New())
	assert.ErrorIs(t, err, sale.ErrSaleClosed)
}

func TestService_UpdatePayment_ClosedSale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{
		ID: uuid.New(), State: sale.StateFinalized, TotalPayable: nd("1000"), TotalPaid: dec("1000"), PriceAssigned: true,
	}

	repo := sale.NewMockRepository(ctrl)
	expectTx(ctrl, repo, &current)

	rejected := testutil.ToFloat64(metrics.Payments.WithLabelValues("rejected"))

	_, err := sale.NewService(repo, defaultIVA).UpdatePayment(context.Background(), current.ID, uuid.New(), sale.PaymentParams{
		Amount: dec("1"), Currency: sale.CurrencyARS, Method: sale.PaymentTransfer, Date: time.Now(),
	})
	assert.ErrorIs(t, err, sale.ErrSaleClosed)
	assert.Equal(t, sale.StateFinalized, current.State)
	assert.True(t, current.TotalPaid.Equal(dec("1000")))
	assert.Equal(t, rejected+1, testutil.ToFloat64(metrics.Payments.WithLabelValues("rejected")))
}

func TestService_AddPayment_ClosedSale(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	current := sale.Sale{
		ID: uuid.New(), State: sale.StateFinalized, TotalPayable: nd("1000"), TotalPaid: dec("1000"), PriceAssigned: true,
	}

	repo := sale.NewMockRepository(ctrl)
	expectTx(ctrl, repo, &current)

	_, err := sale.NewService(repo, defaultIVA).AddPayment(context.Background(), current.ID, sale.PaymentParams{
		Amount: dec("1"), Currency: sale.CurrencyARS, Method: sale.PaymentTransfer, Date: time.Now(),
	})
	assert.ErrorIs(t, err, sale.ErrSaleClosed)
}
