package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStatement = "\ufeff카드번호,승인일자,가맹점명,거래금액(원화),가맹점업종\n" +
	"9410-****-****-6902,2024-01-10 12:31:05,맥도날드 강남점,\"8,400\",일반음식점\n" +
	"9410-****-****-6902,20240111,  한국도로공사 하이패스  ,32000,통행료\n" +
	"9410-****-****-1234,2024.01.12,쿠팡(주),15900.0,전자상거래\n" +
	"9410-****-****-1234,2024/01/13,스타벅스,0,커피전문점\n" +
	"9410-****-****-1234,,GS25,1200,편의점\n" +
	",,,,\n"

func TestCSVParserParse(t *testing.T) {
	transactions, err := NewCSVParser().Parse(context.Background(), strings.NewReader(sampleStatement))
	require.NoError(t, err)
	require.Len(t, transactions, 3)

	first := transactions[0]
	assert.Equal(t, "6902", first.CardID)
	assert.Equal(t, "맥도날드 강남점", first.RawMerchantName)
	assert.Equal(t, int64(8400), first.Amount)
	assert.Equal(t, "일반음식점", first.IndustryCode)
	assert.Equal(t, "2024-01-10", first.Date.Format("2006-01-02"))

	second := transactions[1]
	assert.Equal(t, "한국도로공사 하이패스", second.RawMerchantName)
	assert.Equal(t, "2024-01-11", second.Date.Format("2006-01-02"))

	third := transactions[2]
	assert.Equal(t, "1234", third.CardID)
	assert.Equal(t, int64(15900), third.Amount)
}

func TestCSVParserEnglishHeaders(t *testing.T) {
	data := "Card,Date,Merchant,Amount\n1234,2024-02-01,NETFLIX.COM,17000\n"

	transactions, err := NewCSVParser().Parse(context.Background(), strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "NETFLIX.COM", transactions[0].RawMerchantName)
	assert.Empty(t, transactions[0].IndustryCode)
}

func TestCSVParserErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "empty file",
			data:    "",
			wantErr: common.ErrNoTransactions,
		},
		{
			name:    "header only",
			data:    "카드번호,승인일자,가맹점명,거래금액(원화)\n",
			wantErr: common.ErrNoTransactions,
		},
		{
			name: "missing amount column",
			data: "카드번호,승인일자,가맹점명\n6902,2024-01-10,맥도날드\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVParser().Parse(context.Background(), strings.NewReader(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestCSVParserCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewCSVParser().Parse(ctx, strings.NewReader(sampleStatement))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "2024-01-15", want: "2024-01-15"},
		{input: "2024-01-15 23:59:59", want: "2024-01-15"},
		{input: "2024.01.15", want: "2024-01-15"},
		{input: "2024/01/15", want: "2024-01-15"},
		{input: "20240115", want: "2024-01-15"},
		{input: "20240115 2359", want: "2024-01-15"},
		{input: "", wantErr: true},
		{input: "15 Jan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{input: "8400", want: 8400},
		{input: "8,400", want: 8400},
		{input: " 1 200 ", want: 1200},
		{input: "15900.0", want: 15900},
		{input: "99.9", want: 99},
		{input: "-5,000", want: -5000},
		{input: "12,000원", want: 12000},
		{input: "", wantErr: true},
		{input: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
