package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireNotEmpty(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		fieldName  string
		wantResult bool
		wantStatus int
	}{
		{
			name:       "non-empty value",
			value:      "test",
			fieldName:  "username",
			wantResult: true,
			wantStatus: 0,
		},
		{
			name:       "empty value",
			value:      "",
			fieldName:  "username",
			wantResult: false,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "whitespace only",
			value:      "   ",
			fieldName:  "username",
			wantResult: false,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			result := RequireNotEmpty(w, tt.value, tt.fieldName)

			if result != tt.wantResult {
				t.Errorf("RequireNotEmpty() = %v, want %v", result, tt.wantResult)
			}

			if tt.wantStatus > 0 && w.Code != tt.wantStatus {
				t.Errorf("RequireNotEmpty() status = %v, want %v", w.Code, tt.wantStatus)
			}
		})
	}
}
