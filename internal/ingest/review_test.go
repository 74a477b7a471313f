package ingest

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReviewRoundTrip(t *testing.T) {
	txns := []model.Transaction{
		{
			Date:            time.Date(2024, 1, 10, 12, 31, 0, 0, time.Local),
			RawMerchantName: "맥도날드, 강남점",
			CardID:          "6902",
			IndustryCode:    "일반음식점",
			Amount:          8400,
		},
		{
			Date:            time.Date(2024, 1, 11, 0, 0, 0, 0, time.Local),
			RawMerchantName: "한국도로공사",
			CardID:          "1234",
			Amount:          32000,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteReview(&buf, txns))
	assert.True(t, strings.HasPrefix(buf.String(), "date,card,merchant,amount,industry,usage\n"))

	rows, err := ReadReview(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].Line)
	assert.Equal(t, "맥도날드, 강남점", rows[0].MerchantName)
	assert.Equal(t, "6902", rows[0].CardID)
	assert.Equal(t, int64(8400), rows[0].Amount)
	assert.Equal(t, "2024-01-10", rows[0].Date.Format(model.DayLayout))
	assert.Empty(t, rows[0].UsageLabel)

	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "1234", rows[1].CardID)
}

func TestReadReviewKoreanHeaders(t *testing.T) {
	data := "카드번호,승인일자,가맹점명,거래금액(원화),가맹점업종,최종_사용용도\n" +
		"9410-****-****-6902,2024-01-10,하이패스,32000,통행료,차량유지비\n" +
		"\n" +
		"1234,2024-01-11,쿠팡(주),15900,전자상거래,  \n" +
		"1234,bad-date,스타벅스,n/a,커피전문점,복리후생비\n"

	rows, err := ReadReview(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "6902", rows[0].CardID)
	assert.Equal(t, "차량유지비", rows[0].UsageLabel)
	assert.Equal(t, "통행료", rows[0].IndustryCode)

	assert.Empty(t, rows[1].UsageLabel)
	assert.Equal(t, 4, rows[1].Line)

	assert.True(t, rows[2].Date.IsZero())
	assert.Zero(t, rows[2].Amount)
	assert.Equal(t, "복리후생비", rows[2].UsageLabel)
}

func TestReadReviewMissingColumns(t *testing.T) {
	_, err := ReadReview(strings.NewReader("date,card,merchant\n2024-01-10,6902,GS25\n"))
	assert.Error(t, err)
}

func TestReadReviewEmpty(t *testing.T) {
	rows, err := ReadReview(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
