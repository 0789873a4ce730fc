package exchange_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lochiel/hacienda/internal/exchange"
)

func TestService_Suggest(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(p *exchange.MockProvider, c *exchange.MockCache)
		want      string
		wantErr   error
	}

	oficial := &exchange.Quote{House: "oficial", Buy: decimal.NewFromInt(1010), Sell: decimal.NewFromInt(1050)}

	tests := []testCase{
		{
			name: "cache hit skips the provider",
			setupMock: func(_ *exchange.MockProvider, c *exchange.MockCache) {
				c.EXPECT().Get(gomock.Any(), "house:oficial").
					Return([]byte(`{"casa":"oficial","compra":"1000","venta":"1040.5"}`), true, nil)
			},
			want: "1040.5",
		},
		{
			name: "cache miss fetches and stores",
			setupMock: func(p *exchange.MockProvider, c *exchange.MockCache) {
				c.EXPECT().Get(gomock.Any(), "house:oficial").Return(nil, false, nil)
				p.EXPECT().Quote(gomock.Any(), "oficial").Return(oficial, nil)
				c.EXPECT().Set(gomock.Any(), "house:oficial", gomock.Any(), 10*time.Minute).Return(nil)
			},
			want: "1050",
		},
		{
			name: "cache faults are tolerated",
			setupMock: func(p *exchange.MockProvider, c *exchange.MockCache) {
				c.EXPECT().Get(gomock.Any(), "house:oficial").Return(nil, false, errors.New("redis down"))
				p.EXPECT().Quote(gomock.Any(), "oficial").Return(oficial, nil)
				c.EXPECT().Set(gomock.Any(), "house:oficial", gomock.Any(), 10*time.Minute).Return(errors.New("redis down"))
			},
			want: "1050",
		},
		{
			name: "provider failure",
			setupMock: func(p *exchange.MockProvider, c *exchange.MockCache) {
				c.EXPECT().Get(gomock.Any(), "house:oficial").Return(nil, false, nil)
				p.EXPECT().Quote(gomock.Any(), "oficial").Return(nil, errors.New("execute request: timeout"))
			},
			wantErr: exchange.ErrUnavailable,
		},
		{
			name: "unknown house is not an outage",
			setupMock: func(p *exchange.MockProvider, c *exchange.MockCache) {
				c.EXPECT().Get(gomock.Any(), "house:oficial").Return(nil, false, nil)
				p.EXPECT().Quote(gomock.Any(), "oficial").Return(nil, exchange.ErrUnknownHouse)
			},
			wantErr: exchange.ErrUnknownHouse,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			provider := exchange.NewMockProvider(ctrl)
			cache := exchange.NewMockCache(ctrl)

			tc.setupMock(provider, cache)

			svc := exchange.NewService(provider, cache, "Oficial", 10*time.Minute)

			got, err := svc.Suggest(t.Context())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tc.want).Equal(got), "got %s", got)
		})
	}
}

func TestService_QuotesWithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := exchange.NewMockProvider(ctrl)

	provider.EXPECT().Quotes(gomock.Any()).Return([]exchange.Quote{{House: "oficial"}, {House: "blue"}}, nil)

	quotes, err := exchange.NewService(provider, nil, "oficial", time.Minute).Quotes(t.Context())
	require.NoError(t, err)
	assert.Len(t, quotes, 2)
}
