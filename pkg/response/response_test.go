package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/CyberArcenal/Kabisilya-Management-sub006/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return resp
}

func TestFromError_KindMapping(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   int
		wantKind   string
	}{
		{pkgerrors.Validationf("bad date"), http.StatusBadRequest, CodeValidation, "validation"},
		{pkgerrors.NotFoundf("assignment a-1 not found"), http.StatusNotFound, CodeNotFound, "not_found"},
		{pkgerrors.Conflictf("Assignment is already active"), http.StatusConflict, CodeConflict, "conflict"},
		{pkgerrors.Preconditionf("no active session"), http.StatusPreconditionFailed, CodePrecondition, "precondition"},
		{pkgerrors.ErrOptimisticLock, http.StatusConflict, CodeConflict, "conflict"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		FromError(c, tt.err)

		if w.Code != tt.wantStatus {
			t.Fatalf("%v: 期望 HTTP %d，实际 %d", tt.err, tt.wantStatus, w.Code)
		}
		resp := decode(t, w)
		if resp.Status {
			t.Fatalf("%v: 失败响应 status 应为 false", tt.err)
		}
		if resp.Code != tt.wantCode || resp.Kind != tt.wantKind {
			t.Fatalf("%v: 期望 %d/%s，实际 %d/%s", tt.err, tt.wantCode, tt.wantKind, resp.Code, resp.Kind)
		}
		if resp.Message != tt.err.Error() {
			t.Fatalf("消息应原样透出: %q", resp.Message)
		}
	}
}

func TestFromError_HidesUnclassified(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	FromError(c, errors.New("pq: password authentication failed"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("期望 500，实际 %d", w.Code)
	}
	if resp := decode(t, w); resp.Message != "internal server error" {
		t.Fatalf("底层错误不应外泄: %q", resp.Message)
	}
}

func TestOKPage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	OKPage(c, []string{"a", "b"}, 21, 1, 10)

	resp := decode(t, w)
	if !resp.Status {
		t.Fatal("成功响应 status 应为 true")
	}
	data := resp.Data.(map[string]interface{})
	pagination := data["pagination"].(map[string]interface{})
	if pagination["total_pages"].(float64) != 3 {
		t.Fatalf("期望 3 页，实际 %v", pagination["total_pages"])
	}
}
