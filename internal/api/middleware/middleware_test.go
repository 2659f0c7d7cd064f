package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emicklei/go-restful/v3"
)

func newTestContainer(handler restful.RouteFunction) *restful.Container {
	container := restful.NewContainer()
	container.Filter(Logger)
	container.Filter(RecoverPanic)

	ws := new(restful.WebService)
	ws.Path("/test").Produces(restful.MIME_JSON)
	ws.Route(ws.GET("").To(handler))
	container.Add(ws)
	return container
}

func TestRecoverPanic(t *testing.T) {
	container := newTestContainer(func(req *restful.Request, resp *restful.Response) {
		panic("boom")
	})

	recorder := httptest.NewRecorder()
	container.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/test", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected an error envelope: %v", err)
	}
	if body.Code != http.StatusInternalServerError || body.Error == "boom" {
		t.Errorf("unexpected envelope %+v", body)
	}
}

func TestHandleError(t *testing.T) {
	container := newTestContainer(func(req *restful.Request, resp *restful.Response) {
		HandleError(resp, errors.New("nope"), http.StatusUnprocessableEntity, "prompt_injection")
	})

	recorder := httptest.NewRecorder()
	container.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/test", nil))

	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", recorder.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected an error envelope: %v", err)
	}
	if body.Error != "nope" || len(body.Details) != 1 || body.Details[0] != "prompt_injection" {
		t.Errorf("unexpected envelope %+v", body)
	}
}
