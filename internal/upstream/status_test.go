package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Status
	}{
		{"plain success", "SUCCESS", StatusSuccess},
		{"lowercase", "success", StatusSuccess},
		{"trailing period", "Success.", StatusSuccess},
		{"trailing bang", "TIME_ERROR!", StatusTimeError},
		{"surrounding whitespace", "  RECEIVED  ", StatusReceived},
		{"spaces to underscores", "same type exchange", StatusSameTypeExchange},
		{"usage limit", "Usage_Limit", StatusUsageLimit},
		{"not found", "CDK_NOT_FOUND", StatusNotFound},
		{"timeout retry", "TIMEOUT RETRY.", StatusTimeoutRetry},
		{"not login embedded", "err: NOT_LOGIN please retry", StatusNotLogin},
		{"not login with space", "user not login", StatusNotLogin},
		{"empty", "", StatusUnknown},
		{"only punctuation", "?!.", StatusUnknown},
		{"garbage", "SOMETHING_NEW", StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.raw))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status Status
		want   Class
	}{
		{StatusSuccess, ClassSuccess},
		{StatusReceived, ClassSuccess},
		{StatusSameTypeExchange, ClassSuccess},
		{StatusTooSmallSpend, ClassRestricted},
		{StatusTooPoorSpend, ClassRestricted},
		{StatusTimeError, ClassExpired},
		{StatusUsageLimit, ClassExpired},
		{StatusNotFound, ClassNotFound},
		{StatusTimeoutRetry, ClassRetry},
		{StatusNotLogin, ClassSessionInvalid},
		{StatusUnknown, ClassUnknown},
		{Status("WHATEVER"), ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Classify())
		})
	}
}

func TestIsSuccess(t *testing.T) {
	assert.True(t, StatusSuccess.IsSuccess())
	assert.True(t, StatusReceived.IsSuccess())
	assert.True(t, StatusSameTypeExchange.IsSuccess())
	assert.False(t, StatusTooSmallSpend.IsSuccess())
	assert.False(t, StatusUnknown.IsSuccess())
}

func TestIsPermanentFailure(t *testing.T) {
	assert.True(t, StatusTimeError.IsPermanentFailure())
	assert.True(t, StatusUsageLimit.IsPermanentFailure())
	assert.True(t, StatusNotFound.IsPermanentFailure())
	assert.False(t, StatusTimeoutRetry.IsPermanentFailure())
	assert.False(t, StatusTooPoorSpend.IsPermanentFailure())
	assert.False(t, StatusUnknown.IsPermanentFailure())
}

func TestSuccessStatuses(t *testing.T) {
	got := SuccessStatuses()
	assert.Equal(t, []string{"RECEIVED", "SAME_TYPE_EXCHANGE", "SUCCESS"}, got)
}
