package api

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func echoBody() echo.HandlerFunc {
	return func(c echo.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.Blob(http.StatusOK, echo.MIMEOctetStream, body)
	}
}

func TestGzipRequestMiddlewareDecompresses(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	e.POST("/echo", echoBody())

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write([]byte(`{"title":"zipped"}`)); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/echo", &buf)
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != `{"title":"zipped"}` {
		t.Fatalf("body = %q", got)
	}
}

func TestGzipRequestMiddlewarePassthrough(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	e.POST("/echo", echoBody())

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("plain"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || rec.Body.String() != "plain" {
		t.Fatalf("status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestGzipRequestMiddlewareRejectsInvalidPayload(t *testing.T) {
	e := echo.New()
	e.Use(GzipRequestMiddleware())
	e.POST("/echo", echoBody())

	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("not gzip at all"))
	req.Header.Set(echo.HeaderContentEncoding, "gzip")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
